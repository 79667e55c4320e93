package attempt

// Navigator tracks the current question and clamps it to [0, count).
type Navigator struct {
	index int
	count int
}

func NewNavigator(count int) Navigator {
	return Navigator{count: count}
}

func (n Navigator) Index() int { return n.index }

func (n Navigator) IsLast() bool { return n.count > 0 && n.index == n.count-1 }

func (n *Navigator) Next() {
	if n.index < n.count-1 {
		n.index++
	}
}

func (n *Navigator) Previous() {
	if n.index > 0 {
		n.index--
	}
}

// JumpTo moves to index, clamped into range.
func (n *Navigator) JumpTo(index int) {
	switch {
	case n.count == 0:
		n.index = 0
	case index < 0:
		n.index = 0
	case index >= n.count:
		n.index = n.count - 1
	default:
		n.index = index
	}
}
