// Package reconcile compares freshly extracted credentials against the ones
// stored for a deployment and plans the writes that bring storage up to date.
// It never writes anything itself.
package reconcile

import (
	"fmt"
	"time"

	"vcfcreds/domain/credential"
)

// Update supersedes a stored credential whose password changed.
type Update struct {
	Existing credential.Credential
	Incoming credential.Record
	History  credential.HistoryEntry
}

// Match pairs a stored credential with an incoming record carrying the same
// password.
type Match struct {
	Existing credential.Credential
	Incoming credential.Record
}

// Plan partitions one sync pass. ToCreate, ToUpdate and Unchanged are
// disjoint and together hold every distinct incoming key. Missing holds
// stored credentials no incoming record matched; removing them is left to
// the caller.
type Plan struct {
	ToCreate  []credential.Record
	ToUpdate  []Update
	Unchanged []Match
	Missing   []credential.Credential
	Warnings  []credential.Warning
}

type Stats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Missing   int `json:"missing"`
}

func (p Plan) Stats() Stats {
	return Stats{
		Created:   len(p.ToCreate),
		Updated:   len(p.ToUpdate),
		Unchanged: len(p.Unchanged),
		Missing:   len(p.Missing),
	}
}

type Reconciler struct {
	now func() time.Time
}

type Option func(*Reconciler)

// WithClock sets the clock used to stamp history entries.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile matches incoming against existing by natural key. When incoming
// repeats a key the last record wins; a repeat with a different password is
// reported as an ambiguity.
func (r *Reconciler) Reconcile(existing []credential.Credential, incoming []credential.Record) Plan {
	var plan Plan

	// Only the first stored row of a key can be matched; later copies are stale.
	stored := make(map[credential.NaturalKey]int, len(existing))
	for i, cred := range existing {
		if _, dup := stored[cred.Key()]; !dup {
			stored[cred.Key()] = i
		}
	}

	batch, warnings := dedupe(incoming)
	plan.Warnings = warnings

	seen := make(map[credential.NaturalKey]bool, len(batch))
	now := r.now()
	for _, rec := range batch {
		key := rec.Key()
		seen[key] = true

		i, ok := stored[key]
		if !ok {
			plan.ToCreate = append(plan.ToCreate, rec)
			continue
		}

		cred := existing[i]
		if cred.Password == rec.Password {
			plan.Unchanged = append(plan.Unchanged, Match{Existing: cred, Incoming: rec})
			continue
		}
		plan.ToUpdate = append(plan.ToUpdate, Update{
			Existing: cred,
			Incoming: rec,
			History: credential.HistoryEntry{
				OldPassword:  cred.Password,
				SupersededAt: now,
				ChangeSource: credential.ChangeSync,
			},
		})
	}

	for i, cred := range existing {
		key := cred.Key()
		if stored[key] != i || !seen[key] {
			plan.Missing = append(plan.Missing, cred)
		}
	}

	return plan
}

// dedupe collapses repeated natural keys, keeping first-seen order and the
// last-seen value.
func dedupe(incoming []credential.Record) ([]credential.Record, []credential.Warning) {
	var warnings []credential.Warning

	index := make(map[credential.NaturalKey]int, len(incoming))
	batch := make([]credential.Record, 0, len(incoming))
	for _, rec := range incoming {
		key := rec.Key()
		i, dup := index[key]
		if !dup {
			index[key] = len(batch)
			batch = append(batch, rec)
			continue
		}
		if batch[i].Password != rec.Password {
			warnings = append(warnings, credential.Warning{
				Kind:     credential.WarningAmbiguity,
				Hostname: rec.Hostname,
				Message: fmt.Sprintf("%s %s extracted twice with different passwords (%s then %s), keeping the later one",
					rec.ResourceKind, rec.Username, batch[i].Provenance, rec.Provenance),
			})
		}
		batch[i] = rec
	}
	return batch, warnings
}
