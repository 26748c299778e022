package core

import "context"

// DedupGate rejects national ids already accepted in this run or already
// stored. Store checks are answered from a per-window prefetch so a window
// of rows costs one query.
type DedupGate struct {
	records  RecordStore
	accepted map[string]bool
	stored   map[string]bool
}

func NewDedupGate(records RecordStore) *DedupGate {
	return &DedupGate{
		records:  records,
		accepted: make(map[string]bool),
		stored:   make(map[string]bool),
	}
}

// Prefetch loads store existence for keys, replacing the previous window.
func (g *DedupGate) Prefetch(ctx context.Context, keys []string) error {
	pending := make([]string, 0, len(keys))
	for _, k := range keys {
		if !g.accepted[k] {
			pending = append(pending, k)
		}
	}
	if len(pending) == 0 {
		g.stored = map[string]bool{}
		return nil
	}

	existing, err := g.records.ExistingKeys(ctx, pending)
	if err != nil {
		return &StoreFailure{Op: "check existing keys", Err: err}
	}
	g.stored = make(map[string]bool, len(pending))
	for _, k := range pending {
		g.stored[k] = existing[k]
	}
	return nil
}

// Check returns a duplicate-key *ValidationError when key was accepted
// earlier in the run or exists in the store. Keys outside the prefetched
// window fall back to ExistsByKey.
func (g *DedupGate) Check(ctx context.Context, key string) error {
	if g.accepted[key] {
		return duplicate(key, "repeated in this file")
	}

	exists, ok := g.stored[key]
	if !ok {
		var err error
		exists, err = g.records.ExistsByKey(ctx, key)
		if err != nil {
			return &StoreFailure{Op: "check existing key", Err: err}
		}
	}
	if exists {
		return duplicate(key, "already exists")
	}
	return nil
}

// Accept records key as taken by this run.
func (g *DedupGate) Accept(key string) { g.accepted[key] = true }

// Accepted reports whether key was accepted earlier in this run.
func (g *DedupGate) Accepted(key string) bool { return g.accepted[key] }

func duplicate(key, reason string) error {
	return &ValidationError{Field: "national_id", Reason: key + " " + reason, Err: ErrDuplicateKey}
}
