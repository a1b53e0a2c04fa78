package curve

import "container/list"

// sequence is the output order under construction. Entries are point indices
// and every index owns exactly one list element, so anchors are found in O(1)
// even when two points share coordinates.
type sequence struct {
	order *list.List
	elems []*list.Element
}

func newSequence(n int) *sequence {
	return &sequence{
		order: list.New(),
		elems: make([]*list.Element, n),
	}
}

func (s *sequence) pushBack(idx int) {
	s.elems[idx] = s.order.PushBack(idx)
}

func (s *sequence) insertBefore(idx, mark int) {
	s.elems[idx] = s.order.InsertBefore(idx, s.elems[mark])
}

func (s *sequence) insertAfter(idx, mark int) {
	s.elems[idx] = s.order.InsertAfter(idx, s.elems[mark])
}

func (s *sequence) indices() []int {
	out := make([]int, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(int))
	}
	return out
}
