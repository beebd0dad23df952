package memtree

import "fmt"
import "io"

import "github.com/bnclabs/gopool/lib"

// node in the catalog, spans of same size are chained from blocks.
type node struct {
	size    int64
	blocks  *Block // chained via Block.Next
	smaller *node
	larger  *node
	flags   nodeflags
}

// Tree is a catalog of free spans keyed by size.
type Tree struct {
	root      *node
	freenodes *node // recycled nodes, chained via larger

	n_spans int64
	n_sizes int64
	memory  int64
}

// New create an empty catalog.
func New() *Tree {
	return &Tree{}
}

// Len return the number of spans in the catalog.
func (tree *Tree) Len() int64 {
	return tree.n_spans
}

// Sizes return the number of distinct sizes in the catalog.
func (tree *Tree) Sizes() int64 {
	return tree.n_sizes
}

// Memory return the sum of all span sizes in the catalog.
func (tree *Tree) Memory() int64 {
	return tree.memory
}

// Insert span `blk` into the catalog. Return false if blk is smaller
// than Minsize, in which case catalog is left untouched.
func (tree *Tree) Insert(blk *Block) bool {
	size := blk.Size()
	if size < Minsize {
		return false
	}
	root := tree.upsert(tree.root, size, blk)
	root.flags = root.flags.setblack()
	tree.root = root
	tree.n_spans++
	tree.memory += size
	return true
}

// Fetch remove and return the smallest span whose size is >= minsize.
// Return nil if there is no such span.
func (tree *Tree) Fetch(minsize int64) *Block {
	nd := tree.ceiling(minsize)
	if nd == nil {
		return nil
	}
	blk := nd.blocks
	if blk.Next != nil { // more spans of same size, keep the node.
		nd.blocks, blk.Next = blk.Next, nil

	} else {
		root, deleted := tree.delete(tree.root, nd.size)
		if deleted == nil {
			panicerr("Fetch(): size %v cataloged but not deleted", nd.size)
		}
		if root != nil {
			root.flags = root.flags.setblack()
		}
		tree.root = root
		tree.freenode(deleted)
		tree.n_sizes--
	}
	tree.n_spans--
	tree.memory -= blk.Size()
	return blk
}

// Walk catalog in ascending order of span size, stop when callb
// return false.
func (tree *Tree) Walk(callb func(blk *Block) bool) {
	tree.walk(tree.root, callb)
}

// Reset catalog to empty. If callb is not nil every span is handed
// over to callb, detached from its chain, in ascending size order.
func (tree *Tree) Reset(callb func(blk *Block)) {
	if callb != nil {
		tree.reset(tree.root, callb)
	}
	tree.root = nil
	tree.n_spans, tree.n_sizes, tree.memory = 0, 0, 0
}

// Height of the tree, zero for empty tree.
func (tree *Tree) Height() int64 {
	return height(tree.root)
}

// Stats return catalog statistics.
func (tree *Tree) Stats() map[string]interface{} {
	h := lib.NewHistogramInt64(1, 64, 1)
	heightstats(tree.root, 1, h)
	return map[string]interface{}{
		"n_spans": tree.n_spans,
		"n_sizes": tree.n_sizes,
		"memory":  tree.memory,
		"height":  h.Fullstats(),
	}
}

// Dotdump catalog in graphviz dot format.
func (tree *Tree) Dotdump(buffer io.Writer) {
	lines := []string{
		"digraph memtree {",
		"  ordering=out;",
	}
	for _, line := range lines {
		fmt.Fprintln(buffer, line)
	}
	dotdump(tree.root, buffer)
	fmt.Fprintln(buffer, "}")
}

//---- local functions

func (tree *Tree) upsert(nd *node, size int64, blk *Block) *node {
	if nd == nil {
		blk.Next = nil
		tree.n_sizes++
		return tree.newnode(size, blk)
	}

	if size < nd.size {
		nd.smaller = tree.upsert(nd.smaller, size, blk)
	} else if size > nd.size {
		nd.larger = tree.upsert(nd.larger, size, blk)
	} else {
		blk.Next, nd.blocks = nd.blocks, blk
	}
	return walkuprot23(nd)
}

// smallest node whose size is >= minsize.
func (tree *Tree) ceiling(minsize int64) *node {
	var best *node
	nd := tree.root
	for nd != nil {
		if nd.size == minsize {
			return nd
		} else if nd.size > minsize {
			best, nd = nd, nd.smaller
		} else {
			nd = nd.larger
		}
	}
	return best
}

// using 2-3 trees
func (tree *Tree) deletemin(nd *node) (newnd, deleted *node) {
	if nd == nil {
		return nil, nil
	}
	if nd.smaller == nil {
		return nil, nd
	}
	if !isred(nd.smaller) && !isred(nd.smaller.smaller) {
		nd = moveredleft(nd)
	}
	nd.smaller, deleted = tree.deletemin(nd.smaller)
	return fixup(nd), deleted
}

func (tree *Tree) delete(nd *node, size int64) (newnd, deleted *node) {
	if nd == nil {
		return nil, nil
	}

	if size < nd.size {
		if nd.smaller == nil { // size not present. Nothing to delete
			return nd, nil
		}
		if !isred(nd.smaller) && !isred(nd.smaller.smaller) {
			nd = moveredleft(nd)
		}
		nd.smaller, deleted = tree.delete(nd.smaller, size)

	} else {
		if isred(nd.smaller) {
			nd = rotateright(nd)
		}
		// size matches and no larger subtree.
		if size == nd.size && nd.larger == nil {
			return nil, nd
		}
		if nd.larger != nil && !isred(nd.larger) && !isred(nd.larger.smaller) {
			nd = moveredright(nd)
		}
		if size == nd.size { // from above, nd.larger != nil
			var sub *node
			nd.larger, sub = tree.deletemin(nd.larger)
			if sub == nil {
				panicerr("delete(): fatal logic, no successor for %v", size)
			}
			// successor takes the place of nd, nd's payload is deleted.
			nd.size, sub.size = sub.size, nd.size
			nd.blocks, sub.blocks = sub.blocks, nd.blocks
			deleted = sub

		} else {
			nd.larger, deleted = tree.delete(nd.larger, size)
		}
	}
	return fixup(nd), deleted
}

func (tree *Tree) walk(nd *node, callb func(*Block) bool) bool {
	if nd == nil {
		return true
	}
	if !tree.walk(nd.smaller, callb) {
		return false
	}
	for blk := nd.blocks; blk != nil; blk = blk.Next {
		if !callb(blk) {
			return false
		}
	}
	return tree.walk(nd.larger, callb)
}

func (tree *Tree) reset(nd *node, callb func(*Block)) {
	if nd == nil {
		return
	}
	tree.reset(nd.smaller, callb)
	for blk := nd.blocks; blk != nil; {
		next := blk.Next
		blk.Next = nil
		callb(blk)
		blk = next
	}
	tree.reset(nd.larger, callb)
}

func (tree *Tree) newnode(size int64, blk *Block) *node {
	nd := tree.freenodes
	if nd == nil {
		nd = &node{}
	} else {
		tree.freenodes = nd.larger
	}
	nd.size, nd.blocks = size, blk
	nd.smaller, nd.larger = nil, nil
	nd.flags = nd.flags.clearfreed().setred()
	return nd
}

func (tree *Tree) freenode(nd *node) {
	nd.blocks, nd.smaller = nil, nil
	nd.flags = nd.flags.setfreed()
	nd.larger, tree.freenodes = tree.freenodes, nd
}

// rotation routines for 2-3 algorithm

func isred(nd *node) bool {
	if nd == nil {
		return false
	}
	return nd.flags.isred()
}

func walkuprot23(nd *node) *node {
	if isred(nd.larger) && !isred(nd.smaller) {
		nd = rotateleft(nd)
	}
	if isred(nd.smaller) && isred(nd.smaller.smaller) {
		nd = rotateright(nd)
	}
	if isred(nd.smaller) && isred(nd.larger) {
		flip(nd)
	}
	return nd
}

func rotateleft(nd *node) *node {
	y := nd.larger
	if y.flags.isblack() {
		panic("rotateleft(): rotating a black link ? call the programmer")
	}
	nd.larger = y.smaller
	y.smaller = nd
	if nd.flags.isblack() {
		y.flags = y.flags.setblack()
	} else {
		y.flags = y.flags.setred()
	}
	nd.flags = nd.flags.setred()
	return y
}

func rotateright(nd *node) *node {
	x := nd.smaller
	if x.flags.isblack() {
		panic("rotateright(): rotating a black link ? call the programmer")
	}
	nd.smaller = x.larger
	x.larger = nd
	if nd.flags.isblack() {
		x.flags = x.flags.setblack()
	} else {
		x.flags = x.flags.setred()
	}
	nd.flags = nd.flags.setred()
	return x
}

// REQUIRE: smaller and larger children must be present
func flip(nd *node) {
	nd.smaller.flags = nd.smaller.flags.togglelink()
	nd.larger.flags = nd.larger.flags.togglelink()
	nd.flags = nd.flags.togglelink()
}

// REQUIRE: smaller and larger children must be present
func moveredleft(nd *node) *node {
	flip(nd)
	if isred(nd.larger.smaller) {
		nd.larger = rotateright(nd.larger)
		nd = rotateleft(nd)
		flip(nd)
	}
	return nd
}

// REQUIRE: smaller and larger children must be present
func moveredright(nd *node) *node {
	flip(nd)
	if isred(nd.smaller.smaller) {
		nd = rotateright(nd)
		flip(nd)
	}
	return nd
}

func fixup(nd *node) *node {
	if isred(nd.larger) {
		nd = rotateleft(nd)
	}
	if isred(nd.smaller) && isred(nd.smaller.smaller) {
		nd = rotateright(nd)
	}
	if isred(nd.smaller) && isred(nd.larger) {
		flip(nd)
	}
	return nd
}

func height(nd *node) int64 {
	if nd == nil {
		return 0
	}
	l, r := height(nd.smaller), height(nd.larger)
	if l > r {
		return l + 1
	}
	return r + 1
}

func heightstats(nd *node, depth int64, h *lib.HistogramInt64) {
	if nd == nil {
		return
	}
	h.Add(depth)
	heightstats(nd.smaller, depth+1, h)
	heightstats(nd.larger, depth+1, h)
}

func dotdump(nd *node, buffer io.Writer) {
	if nd == nil {
		return
	}
	count := 0
	for blk := nd.blocks; blk != nil; blk = blk.Next {
		count++
	}
	color := "black"
	if nd.flags.isred() {
		color = "red"
	}
	fmsg := "  n%v [label=\"%v x%v\", color=%v];\n"
	fmt.Fprintf(buffer, fmsg, nd.size, nd.size, count, color)
	for _, child := range []*node{nd.smaller, nd.larger} {
		if child != nil {
			fmt.Fprintf(buffer, "  n%v -> n%v;\n", nd.size, child.size)
			dotdump(child, buffer)
		}
	}
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
