package quadtree

// Stats is a snapshot of the tree's shape.
type Stats struct {
	Nodes    int
	Leaves   int
	Objects  int
	MaxDepth int // deepest node currently allocated
	Splits   int // cumulative
	Merges   int // cumulative
}

func (t *Tree) Stats() Stats {
	s := Stats{
		Nodes:   t.nodes.Len(),
		Objects: t.objects,
		Splits:  t.splits,
		Merges:  t.merges,
	}
	t.nodes.Each(func(_ int, n *node) {
		if n.leaf() {
			s.Leaves++
		}
		if n.depth > s.MaxDepth {
			s.MaxDepth = n.depth
		}
	})
	return s
}

// GatherOutlines emits line segments that draw the whole subdivision: the
// four edges of the root followed by GatherCrosses.
func (t *Tree) GatherOutlines(line func(x0, y0, x1, y1 float32)) {
	lo, hi := t.root.rect.Min, t.root.rect.Max
	line(lo[0], lo[1], hi[0], lo[1])
	line(hi[0], lo[1], hi[0], hi[1])
	line(hi[0], hi[1], lo[0], hi[1])
	line(lo[0], hi[1], lo[0], lo[1])
	t.GatherCrosses(line)
}

// GatherCrosses emits, for every internal node in depth-first order, the
// vertical then the horizontal line through its centre.
func (t *Tree) GatherCrosses(line func(x0, y0, x1, y1 float32)) {
	gatherCrosses(t.root, line)
}

func gatherCrosses(n *node, line func(x0, y0, x1, y1 float32)) {
	if n.leaf() {
		return
	}
	c, lo, hi := n.center, n.rect.Min, n.rect.Max
	line(c[0], lo[1], c[0], hi[1])
	line(lo[0], c[1], hi[0], c[1])
	for _, ch := range n.child {
		gatherCrosses(ch, line)
	}
}
