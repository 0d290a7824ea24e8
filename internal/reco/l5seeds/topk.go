package l5seeds

// topK keeps the k best seeds of one middle spacepoint in a fixed-size
// sorted array.
type topK struct {
	k     int
	items []Seed
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]Seed, 0, max(k, 0))}
}

// better orders by weight, then by inner and outer index so ties resolve
// the same way on every run.
func better(a, b Seed) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if a.Inner != b.Inner {
		return a.Inner < b.Inner
	}
	return a.Outer < b.Outer
}

func (t *topK) insert(s Seed) {
	if t.k <= 0 {
		return
	}
	if len(t.items) < t.k {
		t.items = append(t.items, s)
	} else if better(s, t.items[t.k-1]) {
		t.items[t.k-1] = s
	} else {
		return
	}
	for i := len(t.items) - 1; i > 0 && better(t.items[i], t.items[i-1]); i-- {
		t.items[i], t.items[i-1] = t.items[i-1], t.items[i]
	}
}

func (t *topK) seeds() []Seed {
	if len(t.items) == 0 {
		return nil
	}
	return t.items
}
