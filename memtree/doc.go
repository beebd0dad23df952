// Package memtree implement a catalog of free memory spans, keyed by
// their size, using left-leaning-red-black tree.
//
// Spans of same size are chained together from a single tree node, so
// the tree holds only distinct sizes and both Insert and Fetch complete
// in O(log n) worst case, where n is the number of distinct sizes.
//
// Fetch is best-fit by size: it returns the smallest span that can
// satisfy the requested size, ties are broken in LIFO order.
//
// A Tree is not thread safe.
package memtree
