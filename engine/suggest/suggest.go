// Package suggest maintains the in-memory autocomplete index. It is derived
// from the same payload text the vector index holds, but never touches
// embeddings: suggestions must come back within a keystroke budget.
package suggest

import (
	"sort"
	"strings"
	"sync"
)

type entry struct {
	display string  // original casing, shown to the user
	folded  string  // lowercase form used for prefix matching
	weight  float64 // static popularity/recency weight
	refs    int     // number of records contributing the term
}

// Index is a prefix-queryable structure over listing terms. The sync service
// is its only writer; queries take the read lock.
type Index struct {
	mu       sync.RWMutex
	terms    map[string]*entry   // folded term -> entry
	byRecord map[string][]string // record id -> folded terms it contributed
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		terms:    make(map[string]*entry),
		byRecord: make(map[string][]string),
	}
}

// Put replaces the terms contributed by a record. Weight applies to every
// term of the record; an existing term keeps the highest weight seen.
func (i *Index) Put(recordID string, terms []string, weight float64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.dropLocked(recordID)

	keys := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		folded := strings.ToLower(t)
		e, ok := i.terms[folded]
		if !ok {
			e = &entry{display: t, folded: folded}
			i.terms[folded] = e
		}
		e.refs++
		if weight > e.weight {
			e.weight = weight
		}
		keys = append(keys, folded)
	}
	i.byRecord[recordID] = keys
}

// Remove drops the terms contributed by a record.
func (i *Index) Remove(recordID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dropLocked(recordID)
}

func (i *Index) dropLocked(recordID string) {
	for _, folded := range i.byRecord[recordID] {
		if e, ok := i.terms[folded]; ok {
			e.refs--
			if e.refs <= 0 {
				delete(i.terms, folded)
			}
		}
	}
	delete(i.byRecord, recordID)
}

// Suggest returns up to limit terms starting with prefix, case-insensitive,
// ordered by weight descending then lexicographically.
func (i *Index) Suggest(prefix string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	folded := strings.ToLower(strings.TrimSpace(prefix))

	i.mu.RLock()
	matched := make([]*entry, 0, limit)
	for key, e := range i.terms {
		if strings.HasPrefix(key, folded) {
			matched = append(matched, e)
		}
	}
	i.mu.RUnlock()

	sort.Slice(matched, func(a, b int) bool {
		if matched[a].weight != matched[b].weight {
			return matched[a].weight > matched[b].weight
		}
		return matched[a].folded < matched[b].folded
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]string, len(matched))
	for n, e := range matched {
		out[n] = e.display
	}
	return out
}

// Len reports the number of distinct terms held.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.terms)
}
