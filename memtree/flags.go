package memtree

// nodeflags for catalog node.
type nodeflags uint8

const (
	nodeBlack = 0x1
	nodeFreed = 0x2
)

// setblack flag for node.
func (f nodeflags) setblack() nodeflags {
	return f | nodeflags(nodeBlack)
}

// setred flag for node.
func (f nodeflags) setred() nodeflags {
	return f & (^(nodeflags(nodeBlack))) // clear the bit
}

// togglelink toggle red/black flag to black/red flag.
func (f nodeflags) togglelink() nodeflags {
	return f ^ nodeflags(nodeBlack)
}

func (f nodeflags) isblack() bool {
	return (f & nodeBlack) == nodeflags(nodeBlack)
}

func (f nodeflags) isred() bool {
	return !f.isblack()
}

// setfreed mark node as recycled, recycled nodes are never reachable
// from the root.
func (f nodeflags) setfreed() nodeflags {
	return f | nodeflags(nodeFreed)
}

func (f nodeflags) clearfreed() nodeflags {
	return f & (^(nodeflags(nodeFreed)))
}

func (f nodeflags) isfreed() bool {
	return (f & nodeFreed) == nodeflags(nodeFreed)
}
