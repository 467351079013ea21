// Package accumulator implements the per-query result accumulator: it
// counts, per candidate fingerprint, how many
// zero-match and one-match partitions it collected, applies the HmSearch
// pigeonhole decision rule, and performs the final exact Hamming re-check.
package accumulator

// counts tracks the zero-hit and one-hit tallies for one candidate value.
type counts struct {
	zero int
	one  int
}

// Accumulator is a per-query structure; construct a fresh one for every
// Query call.
type Accumulator[T comparable] struct {
	tolerance int
	hamming   func(a, b T) int
	query     T
	hits      map[T]*counts
}

// New builds an Accumulator for tolerance k and query q. hamming must be
// the exact distance function for the fingerprint shape in play.
func New[T comparable](tolerance int, query T, hamming func(a, b T) int) *Accumulator[T] {
	return &Accumulator[T]{
		tolerance: tolerance,
		hamming:   hamming,
		query:     query,
		hits:      make(map[T]*counts),
	}
}

func (a *Accumulator[T]) entry(v T) *counts {
	c, ok := a.hits[v]
	if !ok {
		c = &counts{}
		a.hits[v] = c
	}
	return c
}

// InsertZeroVariant records a zero-bucket (exact, or >2 deletion-bucket)
// match for candidate v.
func (a *Accumulator[T]) InsertZeroVariant(v T) {
	a.entry(v).zero++
}

// InsertOneVariant records a one-bucket (single-substitution, or <=2
// deletion-bucket) match for candidate v.
func (a *Accumulator[T]) InsertOneVariant(v T) {
	a.entry(v).one++
}

// survives applies the HmSearch pigeonhole sufficient condition:
// candidates that cannot possibly be within tolerance are pruned before
// paying for the exact Hamming check.
func (a *Accumulator[T]) survives(c *counts) bool {
	if a.tolerance%2 == 0 {
		return c.zero >= 1 || c.one >= 2
	}
	return (c.zero >= 1 && c.zero+c.one >= 2) || c.one >= 3
}

// FoundValues returns the surviving, exactly-verified candidates, or
// (nil, false) if none survive.
func (a *Accumulator[T]) FoundValues() ([]T, bool) {
	var out []T
	for v, c := range a.hits {
		if !a.survives(c) {
			continue
		}
		if a.hamming(a.query, v) <= a.tolerance {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
