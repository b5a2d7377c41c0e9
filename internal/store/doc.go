// Package store provides SQLite-backed durable storage for the records
// inventory: schedules, series items, and the append-only audit log.
//
// Every mutation flows through an upsert or delete method here, and
// each one commits the data write and its audit event in a single
// transaction. There is no unaudited write path: if the audit insert
// fails, the data mutation rolls back with it.
//
// Invariants the store enforces:
//
//   - No two schedules share a non-null application_number (partial
//     unique index); a colliding upsert updates the existing record.
//   - No two series items share (schedule_id, item_number); a colliding
//     upsert updates in place.
//   - A series item always references an existing schedule (foreign key
//     plus an explicit existence check before insert).
//   - An update that changes nothing writes nothing: upserts compare
//     canonical snapshots and skip both the data write and the audit
//     event when the record is unchanged.
//
// Audit ordering uses a monotonic seq counter (logical clock), resumed
// from MAX(seq) when an existing database is reopened. Queries order by
// stable keys so results are deterministic.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
