package malloc

import "math"
import "encoding/binary"

import "github.com/bnclabs/gopool/api"
import "github.com/bnclabs/gopool/memtree"

// Maxalloc is the largest amount that can be requested from a pool.
const Maxalloc = int64(math.MaxInt64/2) &^ (Alignment - 1)

// Alloc return n bytes of memory from pool, memory is not zeroed.
// Returned slice has len n and its capacity spans the aligned amount
// actually reserved. Memory stays valid until pool is cleared,
// destroyed or reset to an earlier mark.
func (pool *Pool) Alloc(n int64) []byte {
	pool.assertlive()
	if n < 0 || n > Maxalloc {
		panicerr("Alloc(%v): %w", n, api.ErrorInvalidSize)
	}

	amount := align(n)
	total := amount
	if pool.coalesce {
		total += Sizetagsize
	}
	mem := pool.alloc(total)
	if pool.coalesce {
		binary.LittleEndian.PutUint64(mem[amount:], uint64(amount))
	}
	pool.n_allocs++
	return mem[:n:total]
}

// Calloc same as Alloc, but memory is zeroed.
func (pool *Pool) Calloc(n int64) []byte {
	mem := pool.Alloc(n)
	for i := range mem {
		mem[i] = 0
	}
	return mem
}

// Free hand back memory returned by Alloc to the pool, before the
// pool is cleared. Freed memory is reused by later allocations from
// the same pool. Memory shorter than memtree.Minsize is not reused
// until pool is cleared.
func (pool *Pool) Free(mem []byte) {
	pool.assertlive()
	span := mem[:cap(mem)]
	if int64(len(span)) < memtree.Minsize {
		return
	}
	pool.remnants.Insert(&memtree.Block{Mem: span})
	pool.n_frees++
}

// Sizetag return the aligned amount tagged to mem by a coalescing
// pool, mem must be a slice returned by Alloc. Return false if pool
// is not a coalescing pool.
func (pool *Pool) Sizetag(mem []byte) (int64, bool) {
	pool.assertlive()
	if !pool.coalesce {
		return 0, false
	}
	span := mem[:cap(mem)]
	if int64(len(span)) < Sizetagsize {
		return 0, false
	}
	tag := binary.LittleEndian.Uint64(span[int64(len(span))-Sizetagsize:])
	return int64(tag), true
}

//---- local functions

// alloc reserve aligned amount from the pool.
func (pool *Pool) alloc(amount int64) []byte {
	blk := pool.curblock
	if debugmode {
		if pool.current < 0 || pool.current > blk.Size() {
			panicerr("%v cursor %v outside block %v", pool, pool.current, blk.Size())
		}
	}

	// fast path, bump from current block.
	if blk.Size()-pool.current >= amount {
		off := pool.current
		pool.current += amount
		return blk.Mem[off : off+amount : off+amount]
	}

	// reuse remnants.
	if span := pool.remnants.Fetch(amount); span != nil {
		mem := span.Mem[:amount:amount]
		if span.Size() > amount {
			span.Mem = span.Mem[amount:]
			pool.remnants.Insert(span)
		}
		pool.n_remnants++
		if debugmode {
			pool.remnants.Validate()
		}
		return mem
	}

	// fresh standard block.
	if amount <= pool.ctx.stdsize-blockhdrsize {
		pool.banktail()
		blk = pool.ctx.getblock()
		pool.curblock.Next, pool.curblock = blk, blk
		pool.current = blockhdrsize + amount
		pool.n_blocks++
		return blk.Mem[blockhdrsize:pool.current:pool.current]
	}

	return pool.allocnonstd(amount)
}

// banktail move unused tail of current block into remnants.
func (pool *Pool) banktail() {
	blk := pool.curblock
	if blk.Size()-pool.current < memtree.Minsize {
		return
	}
	pool.remnants.Insert(&memtree.Block{Mem: blk.Mem[pool.current:]})
	pool.current = blk.Size()
}

// allocnonstd reserve amount from a dedicated oversized block.
func (pool *Pool) allocnonstd(amount int64) []byte {
	required := blockhdrsize + amount
	blk := pool.ctx.getnonstd(required)
	if surplus := blk.Size() - required; surplus >= memtree.Minsize {
		pool.remnants.Insert(&memtree.Block{Mem: blk.Mem[required:]})
	}
	blk.Next, pool.nonstd = pool.nonstd, blk
	pool.n_nonstd++
	return blk.Mem[blockhdrsize:required:required]
}

// Footprint return the aligned amount reserved for an n byte request
// and the size of the block that shall serve it, either a standard
// block or an oversized block dedicated to the request.
func (ctx *Context) Footprint(n int64, coalesce bool) (amount, blocksize int64) {
	if n < 0 || n > Maxalloc {
		panicerr("Footprint(%v): %w", n, api.ErrorInvalidSize)
	}
	amount = align(n)
	if coalesce {
		amount += Sizetagsize
	}
	if amount <= ctx.stdsize-blockhdrsize {
		return amount, ctx.stdsize
	}
	return amount, blockhdrsize + amount
}
