package memtree

import "errors"
import "fmt"

// Validate catalog, panic if any of the following is violated:
//   - a red node cannot have a red child and larger links are never red.
//   - number of black links on both sides of every node are equal.
//   - sizes in smaller subtree are < node's size < sizes in larger subtree.
//   - every span chained from a node has the node's size.
//   - span count, size count and memory match the book-keeping.
func (tree *Tree) Validate() {
	if isred(tree.root) {
		panic(errors.New("validate(): root is red"))
	}
	_, spans, sizes, memory := validatetree(tree.root, false, 0, 0, 0)
	if spans != tree.n_spans {
		fmsg := "validate(): n_spans:%v != actual:%v"
		panic(fmt.Errorf(fmsg, tree.n_spans, spans))
	} else if sizes != tree.n_sizes {
		fmsg := "validate(): n_sizes:%v != actual:%v"
		panic(fmt.Errorf(fmsg, tree.n_sizes, sizes))
	} else if memory != tree.memory {
		fmsg := "validate(): memory:%v != actual:%v"
		panic(fmt.Errorf(fmsg, tree.memory, memory))
	}
}

func validatetree(
	nd *node, fromred bool, blacks, lo, hi int64) (
	nblacks, spans, sizes, memory int64) {

	if nd == nil {
		return blacks, 0, 0, 0
	}

	if nd.flags.isfreed() {
		panic(fmt.Errorf("validate(): recycled node %v reachable", nd.size))
	} else if fromred && nd.flags.isred() {
		panic(errors.New("validate(): consecutive red spotted"))
	} else if isred(nd.larger) {
		panic(fmt.Errorf("validate(): node %v leans right", nd.size))
	}
	if nd.flags.isblack() {
		blacks++
	}
	if lo > 0 && nd.size <= lo {
		fmsg := "validate(): sort order, node %v is <= lower bound %v"
		panic(fmt.Errorf(fmsg, nd.size, lo))
	} else if hi > 0 && nd.size >= hi {
		fmsg := "validate(): sort order, node %v is >= upper bound %v"
		panic(fmt.Errorf(fmsg, nd.size, hi))
	}
	if nd.blocks == nil {
		panic(fmt.Errorf("validate(): node %v without spans", nd.size))
	}
	for blk := nd.blocks; blk != nil; blk = blk.Next {
		if blk.Size() != nd.size {
			fmsg := "validate(): span %v chained under node %v"
			panic(fmt.Errorf(fmsg, blk.Size(), nd.size))
		}
		spans++
		memory += nd.size
	}

	lblacks, lspans, lsizes, lmem := validatetree(
		nd.smaller, nd.flags.isred(), blacks, lo, nd.size)
	rblacks, rspans, rsizes, rmem := validatetree(
		nd.larger, nd.flags.isred(), blacks, nd.size, hi)
	if lblacks != rblacks {
		fmsg := "validate(): unbalancedblacks smaller:%v larger:%v"
		panic(fmt.Errorf(fmsg, lblacks, rblacks))
	}
	return lblacks, spans + lspans + rspans, 1 + lsizes + rsizes,
		memory + lmem + rmem
}
