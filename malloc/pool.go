package malloc

import "fmt"
import "unsafe"
import "sync/atomic"

import "github.com/bnclabs/gopool/api"
import "github.com/bnclabs/gopool/memtree"

// blockhdrsize reserved at the head of every block, for block size
// and chain link.
const blockhdrsize = int64(16)

// poolhdrsize reserved in pool's first block for its control structure.
const poolhdrsize = (int64(unsafe.Sizeof(Pool{})) + Alignment - 1) &^ (Alignment - 1)

var _ api.Allocator = (*Pool)(nil)

// Pool is an arena allocating memory from blocks obtained through
// its Context. Memory allocated from a pool is released in bulk when
// the pool is cleared or destroyed. Pool is not thread safe.
type Pool struct {
	// 64-bit aligned stats
	n_allocs   int64
	n_frees    int64
	n_remnants int64 // allocations served from remnants
	n_blocks   int64 // standard blocks acquired after the first block
	n_nonstd   int64 // oversized blocks acquired

	current    int64          // offset into curblock
	curblock   *memtree.Block // block bump allocation happens from
	firstblock *memtree.Block // head of standard blocks, carries pool header
	remnants   *memtree.Tree  // reusable spans from within pool's blocks
	nonstd     *memtree.Block // oversized blocks, most recent first
	ctx        *Context

	parent  *Pool
	sibling *Pool
	child   *Pool // most recently created child

	owners    *owner // cleanups, most recent first
	track     owner  // registration of this pool with trackedby
	trackedby *Pool
	post      *Post // most recent mark
	seqno     uint64
	born      uint64 // parent's seqno when this pool was created

	coalesce bool
	dead     bool
}

// NewRoot create a pool without a parent. Root pools must be
// destroyed explicitly before destroying the context.
func NewRoot(ctx *Context) *Pool {
	blk := ctx.getblock()
	pool := &Pool{
		curblock:   blk,
		firstblock: blk,
		remnants:   memtree.New(),
		ctx:        ctx,
	}
	pool.current = blockhdrsize + poolhdrsize
	atomic.AddInt64(&ctx.n_pools, 1)
	return pool
}

// NewChild create a pool under parent, clearing or destroying parent
// shall destroy this pool.
func NewChild(parent *Pool) *Pool {
	parent.assertlive()
	pool := NewRoot(parent.ctx)
	parent.seqno++
	pool.parent, pool.born = parent, parent.seqno
	pool.sibling, parent.child = parent.child, pool
	return pool
}

// NewCoalescing create a child pool under parent that tags every
// allocation with its size, refer Sizetag().
func NewCoalescing(parent *Pool) *Pool {
	pool := NewChild(parent)
	pool.coalesce = true
	return pool
}

// Context return the context pool is created from.
func (pool *Pool) Context() *Context {
	pool.assertlive()
	return pool.ctx
}

// Parent return parent pool, nil for root pools.
func (pool *Pool) Parent() *Pool {
	pool.assertlive()
	return pool.parent
}

// Coalescing return whether allocations are tagged with its size.
func (pool *Pool) Coalescing() bool {
	pool.assertlive()
	return pool.coalesce
}

// Clear pool, run all registered cleanups and destroy all children,
// then release every block except the first block. Memory allocated
// from the pool must not be used after Clear. Cleanups and children
// destroyed while clearing may register new cleanups or create new
// children with this pool, they are processed as well.
func (pool *Pool) Clear() {
	pool.assertlive()

	for pool.owners != nil || pool.child != nil {
		pool.runowners(0)
		pool.destroychildren(0)
	}

	for blk := pool.nonstd; blk != nil; {
		next := blk.Next
		pool.ctx.returnnonstd(blk)
		blk = next
	}
	pool.nonstd = nil

	if debugmode {
		pool.remnants.Validate()
	}

	pool.returnblocks(pool.firstblock)
	pool.curblock, pool.current = pool.firstblock, blockhdrsize+poolhdrsize
	pool.remnants.Reset(nil)
	pool.invalidateposts(nil)
}

// Destroy pool, clear the pool and hand over its first block to
// context. Pool is detached from its parent and from the pool it was
// tracked in. Using the pool after Destroy shall panic.
func (pool *Pool) Destroy() {
	pool.Clear()

	if parent := pool.parent; parent != nil {
		parent.unlinkchild(pool)
		pool.parent = nil
	}
	if owner := pool.trackedby; owner != nil {
		owner.untrackowner(&pool.track)
		pool.trackedby = nil
	}

	ctx, blk := pool.ctx, pool.firstblock
	pool.curblock, pool.firstblock, pool.current = nil, nil, -1
	pool.remnants, pool.dead = nil, true
	ctx.returnstd(blk)
	atomic.AddInt64(&ctx.n_pools, -1)
}

// String implement fmt.Stringer interface.
func (pool *Pool) String() string {
	return fmt.Sprintf("pool<%p>", pool)
}

//---- local functions

func (pool *Pool) assertlive() {
	if pool.dead {
		panic(api.ErrorPoolDestroyed)
	}
}

// runowners run cleanups registered after seqno, most recent first.
func (pool *Pool) runowners(seqno uint64) {
	for pool.owners != nil && pool.owners.seqno > seqno {
		rec := pool.owners
		pool.owners, rec.next = rec.next, nil
		rec.cleanup(rec.tracked)
	}
}

// destroychildren destroy children created after seqno, most recent
// first.
func (pool *Pool) destroychildren(seqno uint64) {
	for pool.child != nil && pool.child.born > seqno {
		pool.child.Destroy()
	}
}

// returnblocks hand over standard blocks chained after blk to context.
func (pool *Pool) returnblocks(blk *memtree.Block) {
	next := blk.Next
	blk.Next = nil
	for blk = next; blk != nil; blk = next {
		next = blk.Next
		blk.Next = nil
		pool.ctx.returnstd(blk)
	}
}

func (pool *Pool) unlinkchild(child *Pool) {
	for link := &pool.child; *link != nil; link = &(*link).sibling {
		if *link == child {
			*link, child.sibling = child.sibling, nil
			return
		}
	}
	panicerr("%v is not a child of %v", child, pool)
}
