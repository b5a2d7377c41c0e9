package reconcile

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mwaltman/schedstore/internal/model"
)

// incoming is one schedule from the payload paired with its
// payload-local key. The key is the record's own "_id" when it has
// one, or a positional "#n" fallback; it exists only so series items
// in the same payload can reference the schedule, and never survives
// the import.
type incoming struct {
	key      string
	schedule model.Schedule
}

// Decision records what identity one incoming schedule resolved to.
type Decision struct {
	// Key is the payload-local key of the incoming schedule.
	Key string

	// ID is the identity the schedule will have in the target store.
	ID model.ScheduleID

	// IsNew reports whether the identity was freshly minted rather
	// than matched to an existing schedule.
	IsNew bool

	// failed is set by the reconciler when the schedule was rejected
	// after resolution; series referencing it must not be written.
	failed bool
}

// Resolution is the complete payload-key to store-identity mapping,
// computed once before any series item is processed.
type Resolution struct {
	decisions map[string]*Decision
	order     []*Decision
	warnings  []Warning
}

// Lookup returns the usable decision for a payload-local key.
// Returns false for unknown keys and for schedules that were resolved
// but later rejected.
func (r *Resolution) Lookup(key string) (Decision, bool) {
	d, ok := r.decisions[key]
	if !ok || d.failed {
		return Decision{}, false
	}
	return *d, true
}

// MarkFailed invalidates a decision after its schedule was rejected.
func (r *Resolution) MarkFailed(key string) {
	if d, ok := r.decisions[key]; ok {
		d.failed = true
	}
}

// Decisions returns the decisions in input order.
func (r *Resolution) Decisions() []Decision {
	out := make([]Decision, len(r.order))
	for i, d := range r.order {
		out[i] = *d
	}
	return out
}

// Warnings returns conflicts detected during resolution.
func (r *Resolution) Warnings() []Warning {
	return r.warnings
}

// resolverOptions tunes identity resolution.
type resolverOptions struct {
	// mergeDraftsByTitle merges an incoming draft into an existing
	// draft when exactly one existing draft carries the same
	// normalized title. Off by default: two drafts with identical
	// titles remain distinct records.
	mergeDraftsByTitle bool
}

// resolve computes the identity mapping for a batch of incoming
// schedules against the current store content. Pure: mint is the only
// effect, and it only produces fresh opaque handles.
//
// Matching uses the application_number business key, never incoming
// identities. Duplicate non-null application numbers among the
// incoming schedules are a reportable conflict: the first occurrence
// establishes the mapping and later ones fold into the same resolved
// identity as updates (last write wins on scalar fields).
func resolve(existing []model.Schedule, batch []incoming, mint func() string, opts resolverOptions) *Resolution {
	byNumber := make(map[string]model.ScheduleID)
	draftsByTitle := make(map[string][]model.ScheduleID)
	for _, sch := range existing {
		if sch.ApplicationNumber != nil {
			byNumber[*sch.ApplicationNumber] = sch.ID
		} else {
			key := normalizeTitle(sch.Title)
			draftsByTitle[key] = append(draftsByTitle[key], sch.ID)
		}
	}

	res := &Resolution{decisions: make(map[string]*Decision)}
	claimed := make(map[string]string) // application_number -> first payload key

	for _, in := range batch {
		d := &Decision{Key: in.key}

		switch {
		case in.schedule.ApplicationNumber != nil:
			number := *in.schedule.ApplicationNumber
			if firstKey, dup := claimed[number]; dup {
				// Later duplicate folds into the first record's target.
				first := res.decisions[firstKey]
				d.ID = first.ID
				d.IsNew = false
				res.warnings = append(res.warnings, Warning{
					Code: WarnConflict,
					Kind: model.KindSchedule,
					Ref:  number,
					Message: "duplicate application number in payload; " +
						"folded into the earlier record's identity (last write wins)",
				})
			} else if id, ok := byNumber[number]; ok {
				d.ID = id
				claimed[number] = in.key
			} else {
				d.ID = model.ScheduleID(mint())
				d.IsNew = true
				claimed[number] = in.key
			}

		case opts.mergeDraftsByTitle:
			matches := draftsByTitle[normalizeTitle(in.schedule.Title)]
			if len(matches) == 1 {
				d.ID = matches[0]
			} else {
				if len(matches) > 1 {
					res.warnings = append(res.warnings, Warning{
						Code: WarnConflict,
						Kind: model.KindSchedule,
						Ref:  in.schedule.Title,
						Message: "multiple existing drafts share this title; " +
							"created a new record instead of guessing a merge target",
					})
				}
				d.ID = model.ScheduleID(mint())
				d.IsNew = true
			}

		default:
			// Drafts have no business key and are always new.
			d.ID = model.ScheduleID(mint())
			d.IsNew = true
		}

		res.decisions[in.key] = d
		res.order = append(res.order, d)
	}

	return res
}

// normalizeTitle folds a title for draft matching: NFC, trimmed,
// case-insensitive.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(title)))
}
