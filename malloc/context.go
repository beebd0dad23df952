package malloc

import "fmt"
import "sync"
import "sync/atomic"

import "github.com/bnclabs/gopool/api"
import "github.com/bnclabs/gopool/lib"
import "github.com/bnclabs/gopool/memtree"
import s "github.com/bnclabs/gosettings"
import "github.com/zeebo/xxh3"

// OOMHandler is called with the amount of memory that could not be
// obtained from the system. Return true to retry the request, return
// false to treat exhaustion as fatal.
type OOMHandler func(amount int64) bool

// Context is the source of blocks for a tree of pools. Context is
// shared by all pools created from it and can be used concurrently,
// pools themselves are single threaded.
type Context struct {
	// 64-bit aligned stats
	inuse          int64 // bytes obtained from the system, not yet released.
	n_pools        int64 // live pools
	n_sysallocs    int64
	n_sysfrees     int64
	n_stdgets      int64
	n_stdreuses    int64
	n_stdreturns   int64
	n_nonstdgets   int64
	n_nonstdreuses int64
	n_nonstdrets   int64
	n_ooms         int64
	n_retries      int64

	name       string
	stdsize    int64
	capacity   int64
	poison     bool
	oomhandler OOMHandler
	logprefix  string
	setts      s.Settings

	// guarded by mu.
	once       sync.Once
	mu         *sync.Mutex
	stdblocks  *memtree.Block
	nstdblocks int64
	nonstd     *memtree.Tree
	checksums  map[*memtree.Block]uint64
	h_nonstd   *lib.HistogramInt64
	destroyed  bool
}

// NewContext create a new context. Settings are mixed into
// Defaultsettings(), oomhandler can be nil.
func NewContext(setts s.Settings, oomhandler OOMHandler) *Context {
	ctx := &Context{oomhandler: oomhandler, nonstd: memtree.New()}
	ctx.readsettings(make(s.Settings).Mixin(Defaultsettings(), setts))
	ctx.logprefix = fmt.Sprintf("MALLOC [%s]", ctx.name)
	ctx.h_nonstd = lib.NewHistogramInt64(
		ctx.stdsize, 64*ctx.stdsize, ctx.stdsize,
	)
	fmsg := "%v started with blocksize:%v capacity:%v poison:%v\n"
	infof(fmsg, ctx.logprefix, ctx.stdsize, ctx.capacity, ctx.poison)
	return ctx
}

func (ctx *Context) readsettings(setts s.Settings) {
	ctx.setts = setts
	ctx.name = setts.String("name")
	ctx.stdsize = clampblocksize(setts.Int64("blocksize"))
	ctx.capacity = clampcapacity(setts.Int64("capacity"))
	ctx.poison = setts.Bool("poison")
	if ctx.stdsize < blockhdrsize+poolhdrsize+memtree.Minsize {
		panicerr("blocksize %v too small for pool header", ctx.stdsize)
	}
}

// Blocksize return size of standard blocks, after clamping.
func (ctx *Context) Blocksize() int64 {
	return ctx.stdsize
}

// Stdblocks return the number of standard blocks in the free list.
func (ctx *Context) Stdblocks() int64 {
	mu := ctx.mutex()
	mu.Lock()
	defer mu.Unlock()
	return ctx.nstdblocks
}

// Nonstdblocks return the number of blocks in the non-standard catalog.
func (ctx *Context) Nonstdblocks() int64 {
	mu := ctx.mutex()
	mu.Lock()
	defer mu.Unlock()
	return ctx.nonstd.Len()
}

// Fetchnonstd remove and return the smallest cached non-standard
// block of at least `size` bytes, nil if there is no such block. The
// block stays accounted in context's memory usage, hand it back with
// Returnnonstd() so that it can be reused or released.
func (ctx *Context) Fetchnonstd(size int64) *memtree.Block {
	return ctx.fetchnonstd(size)
}

// Returnnonstd hand back a block obtained by Fetchnonstd(). Panics if
// block is not larger than standard blocks.
func (ctx *Context) Returnnonstd(blk *memtree.Block) {
	if blk == nil || blk.Size() <= ctx.stdsize {
		panicerr("%v Returnnonstd() invalid block", ctx.logprefix)
	}
	ctx.returnnonstd(blk)
}

// Sysallocs return the number of blocks obtained from the system.
func (ctx *Context) Sysallocs() int64 {
	return atomic.LoadInt64(&ctx.n_sysallocs)
}

// Pools return the number of live pools created from this context.
func (ctx *Context) Pools() int64 {
	return atomic.LoadInt64(&ctx.n_pools)
}

// Destroy context, all memory cached by the context is released.
// Panics with api.ErrorLivePools if pools created from this context
// are not destroyed yet.
func (ctx *Context) Destroy() {
	if n := atomic.LoadInt64(&ctx.n_pools); n > 0 {
		errorf("%v destroy with %v live pools\n", ctx.logprefix, n)
		panic(api.ErrorLivePools)
	}

	released := ctx.release(true)
	infof("%v destroyed, released:%v\n", ctx.logprefix, released)
}

// Release all blocks cached by the context back to the system and
// return the number of bytes released. Typically called from an
// OOMHandler after destroying pools.
func (ctx *Context) Release() int64 {
	released := ctx.release(false)
	debugf("%v released %v bytes\n", ctx.logprefix, released)
	return released
}

//---- local functions

func (ctx *Context) release(destroy bool) int64 {
	mu := ctx.mutex()
	mu.Lock()
	defer mu.Unlock()

	if ctx.destroyed {
		return 0
	}
	released := int64(0)
	sysfree := func(blk *memtree.Block) {
		released += blk.Size()
		ctx.sysfree(blk)
	}
	for blk := ctx.stdblocks; blk != nil; {
		next := blk.Next
		sysfree(blk)
		blk = next
	}
	ctx.stdblocks, ctx.nstdblocks = nil, 0
	ctx.nonstd.Reset(sysfree)
	ctx.checksums = make(map[*memtree.Block]uint64)
	ctx.destroyed = destroy
	return released
}

func (ctx *Context) mutex() *sync.Mutex {
	ctx.once.Do(func() {
		ctx.mu = &sync.Mutex{}
		ctx.checksums = make(map[*memtree.Block]uint64)
	})
	return ctx.mu
}

// getblock return a standard block, from free-list if available.
func (ctx *Context) getblock() *memtree.Block {
	atomic.AddInt64(&ctx.n_stdgets, 1)

	var sum uint64
	mu := ctx.mutex()
	mu.Lock()
	if ctx.destroyed {
		mu.Unlock()
		panicerr("%v getblock() on destroyed context", ctx.logprefix)
	}
	blk := ctx.stdblocks
	if blk != nil {
		ctx.stdblocks, blk.Next = blk.Next, nil
		ctx.nstdblocks--
		sum = ctx.popchecksum(blk)
	}
	mu.Unlock()

	if blk == nil {
		return ctx.sysalloc(ctx.stdsize)
	}
	atomic.AddInt64(&ctx.n_stdreuses, 1)
	ctx.verifypoison(blk, sum)
	return blk
}

// returnstd push standard block `blk` into free-list.
func (ctx *Context) returnstd(blk *memtree.Block) {
	if blk.Size() != ctx.stdsize {
		fmsg := "%v returnstd() block size %v != %v"
		panicerr(fmsg, ctx.logprefix, blk.Size(), ctx.stdsize)
	}
	var sum uint64
	if ctx.poison {
		sum = poisonblock(blk.Mem)
	}

	mu := ctx.mutex()
	mu.Lock()
	blk.Next, ctx.stdblocks = ctx.stdblocks, blk
	ctx.nstdblocks++
	if ctx.poison {
		ctx.checksums[blk] = sum
	}
	mu.Unlock()

	atomic.AddInt64(&ctx.n_stdreturns, 1)
}

// returnnonstd insert oversized block `blk` into the catalog.
func (ctx *Context) returnnonstd(blk *memtree.Block) {
	var sum uint64
	if ctx.poison {
		sum = poisonblock(blk.Mem)
	}

	mu := ctx.mutex()
	mu.Lock()
	blk.Next = nil
	if !ctx.nonstd.Insert(blk) {
		mu.Unlock()
		panicerr("%v returnnonstd() block of %v bytes", ctx.logprefix, blk.Size())
	}
	if ctx.poison {
		ctx.checksums[blk] = sum
	}
	mu.Unlock()

	atomic.AddInt64(&ctx.n_nonstdrets, 1)
}

// getnonstd return a block of at least `required` bytes, from the
// catalog if available.
func (ctx *Context) getnonstd(required int64) *memtree.Block {
	atomic.AddInt64(&ctx.n_nonstdgets, 1)
	if blk := ctx.fetchnonstd(required); blk != nil {
		return blk
	}
	return ctx.sysalloc(required)
}

// fetchnonstd best-fit fetch from non-standard catalog.
func (ctx *Context) fetchnonstd(required int64) *memtree.Block {
	var sum uint64

	mu := ctx.mutex()
	mu.Lock()
	ctx.h_nonstd.Add(required)
	blk := ctx.nonstd.Fetch(required)
	if blk != nil {
		sum = ctx.popchecksum(blk)
	}
	mu.Unlock()

	if blk != nil {
		debugf("%v reuse block %v for %v bytes\n", ctx.logprefix, blk.Size(), required)
		atomic.AddInt64(&ctx.n_nonstdreuses, 1)
		ctx.verifypoison(blk, sum)
	}
	return blk
}

// sysalloc obtain a block of `size` bytes from the system, within
// configured capacity.
func (ctx *Context) sysalloc(size int64) *memtree.Block {
	for {
		if inuse := atomic.AddInt64(&ctx.inuse, size); inuse <= ctx.capacity {
			atomic.AddInt64(&ctx.n_sysallocs, 1)
			return &memtree.Block{Mem: make([]byte, size)}
		}
		atomic.AddInt64(&ctx.inuse, -size)
		atomic.AddInt64(&ctx.n_ooms, 1)

		if ctx.oomhandler != nil && ctx.oomhandler(size) {
			atomic.AddInt64(&ctx.n_retries, 1)
			warnf("%v retry allocation of %v bytes\n", ctx.logprefix, size)
			continue
		}
		fmsg := "%v out of memory allocating %v bytes, capacity:%v inuse:%v\n"
		inuse := atomic.LoadInt64(&ctx.inuse)
		fatalf(fmsg, ctx.logprefix, size, ctx.capacity, inuse)
		panic(api.ErrorOutofMemory)
	}
}

// sysfree release block to the system, called with mu held.
func (ctx *Context) sysfree(blk *memtree.Block) {
	atomic.AddInt64(&ctx.inuse, -blk.Size())
	atomic.AddInt64(&ctx.n_sysfrees, 1)
	blk.Mem, blk.Next = nil, nil
}

// popchecksum called with mu held.
func (ctx *Context) popchecksum(blk *memtree.Block) uint64 {
	if !ctx.poison {
		return 0
	}
	sum := ctx.checksums[blk]
	delete(ctx.checksums, blk)
	return sum
}

func (ctx *Context) verifypoison(blk *memtree.Block, sum uint64) {
	if !ctx.poison {
		return
	}
	if xxh3.Hash(blk.Mem) != sum {
		fmsg := "%v block of %v bytes modified after free"
		panicerr(fmsg, ctx.logprefix, blk.Size())
	}
}
