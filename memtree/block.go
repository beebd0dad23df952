package memtree

// Minsize is the smallest span that can be cataloged, four machine
// words: span size, chain link, smaller link and larger link. Spans
// smaller than Minsize are not worth tracking and are dropped.
const Minsize = int64(32)

// Block is a span of memory. When a block is obtained from system
// allocator its size includes the header reserved by the owner.
// Next link is used to chain blocks into lists, a block is a member
// of at most one list at any time.
type Block struct {
	Mem  []byte
	Next *Block
}

// Size of the span in bytes.
func (blk *Block) Size() int64 {
	return int64(len(blk.Mem))
}
