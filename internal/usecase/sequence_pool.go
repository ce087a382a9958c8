package usecase

import "github.com/google/btree"

// span is a maximal run [lo, hi] of occupied sequences.
type span struct {
	lo, hi int
}

func spanLess(a, b span) bool { return a.lo < b.lo }

// SequencePool is the set of in-flight sequences of one plan, stored as
// merged runs in a B-tree so NextMissing stays O(log n) however the set is
// fragmented.
type SequencePool struct {
	tree *btree.BTreeG[span]
	n    int
}

func NewSequencePool(inUse ...int) *SequencePool {
	p := &SequencePool{tree: btree.NewG[span](2, spanLess)}
	for _, s := range inUse {
		p.Add(s)
	}
	return p
}

// floor returns the run with the largest lo <= x.
func (p *SequencePool) floor(x int) (span, bool) {
	var out span
	found := false
	p.tree.DescendLessOrEqual(span{lo: x, hi: x}, func(s span) bool {
		out, found = s, true
		return false
	})
	return out, found
}

// ceil returns the run with the smallest lo >= x.
func (p *SequencePool) ceil(x int) (span, bool) {
	var out span
	found := false
	p.tree.AscendGreaterOrEqual(span{lo: x, hi: x}, func(s span) bool {
		out, found = s, true
		return false
	})
	return out, found
}

func (p *SequencePool) Contains(x int) bool {
	s, ok := p.floor(x)
	return ok && x <= s.hi
}

// Add marks x as in use, merging with adjacent runs.
func (p *SequencePool) Add(x int) {
	if p.Contains(x) {
		return
	}
	merged := span{lo: x, hi: x}
	if prev, ok := p.floor(x); ok && prev.hi+1 == x {
		p.tree.Delete(prev)
		merged.lo = prev.lo
	}
	if next, ok := p.ceil(x + 1); ok && next.lo == x+1 {
		p.tree.Delete(next)
		merged.hi = next.hi
	}
	p.tree.ReplaceOrInsert(merged)
	p.n++
}

// NextMissing returns the smallest value >= x not in the pool.
func (p *SequencePool) NextMissing(x int) int {
	if s, ok := p.floor(x); ok && x <= s.hi {
		return s.hi + 1
	}
	return x
}

func (p *SequencePool) Len() int { return p.n }
