package search

import (
	"fmt"
	"sort"
	"strings"
)

// Predicate is the include or exclude half of a Spec: match on rid, op,
// and/or an attribute mapping.
type Predicate struct {
	RID        string
	Op         string
	Attributes map[string]string
}

// Spec is a search specification: {rid?, op?, attributes?, filter?,
// exclude?, limit?}. Zero values are "unset" for every field.
type Spec struct {
	Predicate
	Filter  string
	Exclude *Predicate
	Limit   int
}

// DataFromID builds the spec used to fetch a record's current state:
// search({rid, exclude: {op: "read"}, limit: 1}). Excluding read audit
// fragments prevents them from masking the record's real state.
func DataFromID(rid string) Spec {
	return Spec{
		Predicate: Predicate{RID: rid},
		Exclude:   &Predicate{Op: "read"},
		Limit:     1,
	}
}

// BuildFilter translates spec into the platform's filter expression
// language: predicates become `@key:"value"`, exclusions get a leading
// `-`, terms join with ` AND `, and a caller-supplied raw filter is
// appended last.
func BuildFilter(spec Spec) string {
	var terms []string
	terms = append(terms, predicateTerms(spec.Predicate, false)...)
	if spec.Exclude != nil {
		terms = append(terms, predicateTerms(*spec.Exclude, true)...)
	}
	if spec.Filter != "" {
		terms = append(terms, spec.Filter)
	}
	return strings.Join(terms, " AND ")
}

func predicateTerms(p Predicate, negate bool) []string {
	var terms []string
	if p.RID != "" {
		terms = append(terms, term("__id", p.RID, negate))
	}
	if p.Op != "" {
		terms = append(terms, term("operation", p.Op, negate))
	}
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		terms = append(terms, term(k, p.Attributes[k], negate))
	}
	return terms
}

func term(key, value string, negate bool) string {
	t := fmt.Sprintf(`@%s:"%s"`, key, value)
	if negate {
		return "-" + t
	}
	return t
}

// FetchLimit computes the actual fetch limit for a requested record limit,
// over-fetching to maximize the odds of retrieving complete chunk groups in
// one round-trip: max(requested*10, maxLogRequestSize).
func FetchLimit(requested, maxLogRequestSize int) int {
	if requested <= 0 {
		requested = 1
	}
	fetch := requested * 10
	if maxLogRequestSize > fetch {
		fetch = maxLogRequestSize
	}
	return fetch
}
