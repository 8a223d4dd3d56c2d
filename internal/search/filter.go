// Package search provides free-text filtering over complaint records. It is
// small and deterministic:
//
//   - No logging in the library (callers decide how/what to log)
//   - Pure substring containment; no tokenizing, anchoring, or ranking
//   - Unicode case folding via golang.org/x/text/cases
//   - Input order is preserved; the input slice is never modified
//
// A record matches when any of its canonical fields, rendered as text (the
// date as YYYY-MM-DD), contains the query. The store-assigned id is not a
// searchable field.
package search

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// Matcher tests records against one folded query. A Matcher is not safe for
// concurrent use because the underlying Caser keeps state.
type Matcher struct {
	needle string
	fold   cases.Caser
}

// NewMatcher folds q once. Whitespace in q is significant; only the empty
// query matches everything.
func NewMatcher(q string) *Matcher {
	m := &Matcher{fold: cases.Fold()}
	if q != "" {
		m.needle = m.fold.String(q)
	}
	return m
}

// Empty reports whether the query matches every record.
func (m *Matcher) Empty() bool { return m.needle == "" }

// Match reports whether any field of c contains the query, ignoring case.
func (m *Matcher) Match(c *domain.Complaint) bool {
	if m.Empty() {
		return true
	}
	for _, f := range domain.Fields {
		v := c.Value(f)
		if v == "" {
			continue
		}
		if strings.Contains(m.fold.String(v), m.needle) {
			return true
		}
	}
	return false
}

// Filter returns the records matching q in their original order. An empty
// query returns recs unchanged.
func Filter(recs []domain.Complaint, q string) []domain.Complaint {
	m := NewMatcher(q)
	if m.Empty() {
		return recs
	}
	out := make([]domain.Complaint, 0, len(recs))
	for i := range recs {
		if m.Match(&recs[i]) {
			out = append(out, recs[i])
		}
	}
	return out
}
