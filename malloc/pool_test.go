package malloc

import "fmt"
import "errors"
import "testing"
import "unsafe"

import "github.com/bnclabs/gopool/api"
import "github.com/bnclabs/gopool/memtree"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

var _ = fmt.Sprintf("dummy")

func addr(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[:1][0]))
}

// available bytes in the first block of a fresh pool.
func firstavail(ctx *Context) int64 {
	return ctx.Blocksize() - blockhdrsize - poolhdrsize
}

func TestBumpFastPath(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	a, b := pool.Alloc(100), pool.Alloc(100)
	require.Equal(t, 100, len(a))
	require.Equal(t, 104, cap(a))
	if x, y := addr(a)+104, addr(b); x != y {
		t.Errorf("expected %v, got %v", x, y)
	}
	assert.Equal(t, blockhdrsize+poolhdrsize+208, pool.current)
	assert.True(t, pool.curblock == pool.firstblock)
	assert.Equal(t, int64(1), ctx.Sysallocs())

	for _, n := range []int64{1, 3, 7, 8, 9, 33} {
		mem := pool.Alloc(n)
		assert.Equal(t, int(n), len(mem))
		assert.Equal(t, uintptr(0), addr(mem)%uintptr(Alignment), "n %v", n)
	}

	// writes into one allocation do not bleed into neighbours.
	for i := range a {
		a[i] = 0xaa
	}
	for i := range b {
		b[i] = 0xbb
	}
	assert.Equal(t, byte(0xaa), a[99])
	assert.Equal(t, byte(0xbb), b[0])

	pool.Destroy()
	ctx.Destroy()
}

func TestZeroAlloc(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)
	current := pool.current
	mem := pool.Alloc(0)
	assert.Equal(t, 0, len(mem))
	assert.Equal(t, 0, cap(mem))
	assert.Equal(t, current, pool.current)
	pool.Destroy()
	ctx.Destroy()
}

func TestInvalidSize(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)
	for _, n := range []int64{-1, Maxalloc + 1} {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, api.ErrorInvalidSize) {
					t.Errorf("expected %v, got %v", api.ErrorInvalidSize, r)
				}
			}()
			pool.Alloc(n)
		}()
	}
	pool.Destroy()
	ctx.Destroy()
}

func TestRemnantReuse(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	a := pool.Alloc(512)
	pool.Alloc(firstavail(ctx) - 512)
	require.Equal(t, pool.curblock.Size(), pool.current)

	pool.Free(a)
	require.Equal(t, int64(1), pool.remnants.Len())

	stdgets := ctx.Stats()["n_stdgets"]
	b := pool.Alloc(300)
	assert.Equal(t, addr(a), addr(b))
	assert.Equal(t, 304, cap(b))
	assert.Equal(t, int64(1), pool.remnants.Len())
	assert.Equal(t, int64(208), pool.remnants.Memory())

	c := pool.Alloc(200)
	assert.Equal(t, addr(a)+304, addr(c))
	assert.Equal(t, int64(0), pool.remnants.Len())

	// no new block was obtained from context.
	assert.Equal(t, stdgets, ctx.Stats()["n_stdgets"])
	assert.Equal(t, int64(1), ctx.Sysallocs())
	assert.Equal(t, int64(2), pool.Stats()["n_remnants"])

	pool.Destroy()
	ctx.Destroy()
}

func TestFreeSmall(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	pool.Free(pool.Alloc(memtree.Minsize - Alignment))
	pool.Free(nil)
	assert.Equal(t, int64(0), pool.remnants.Len())
	pool.Free(pool.Alloc(memtree.Minsize))
	assert.Equal(t, int64(1), pool.remnants.Len())
	assert.Equal(t, int64(1), pool.Stats()["n_frees"])

	pool.Destroy()
	ctx.Destroy()
}

func TestNewBlockBanksTail(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	pool.Alloc(firstavail(ctx) - 1000)
	first := pool.curblock
	mem := pool.Alloc(2000)
	require.True(t, pool.curblock != first)
	assert.True(t, first.Next == pool.curblock)
	assert.Equal(t, addr(pool.curblock.Mem)+uintptr(blockhdrsize), addr(mem))
	assert.Equal(t, int64(1), pool.remnants.Len())
	assert.Equal(t, int64(1000), pool.remnants.Memory())

	// remaining 2080 bytes are not sufficient, 1000 byte remnant
	// neither.
	pool.Alloc(2500)
	assert.Equal(t, int64(2), pool.remnants.Len())
	assert.Equal(t, int64(1000+2080), pool.remnants.Memory())
	assert.Equal(t, int64(3), pool.Stats()["stdblocks"])
	assert.Equal(t, int64(2), pool.Stats()["n_blocks"])

	// largest request served from a standard block.
	pool.Alloc(ctx.Blocksize() - blockhdrsize)
	assert.Equal(t, int64(4), pool.Stats()["stdblocks"])
	assert.Equal(t, pool.curblock.Size(), pool.current)

	pool.Destroy()
	ctx.Destroy()
}

func TestOversized(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	mem := pool.Alloc(ctx.Blocksize() - blockhdrsize + 1)
	require.NotNil(t, pool.nonstd)
	assert.Equal(t, ctx.Blocksize()+Alignment, pool.nonstd.Size())
	assert.Equal(t, addr(pool.nonstd.Mem)+uintptr(blockhdrsize), addr(mem))
	assert.True(t, pool.curblock == pool.firstblock)

	pool.Alloc(20000)
	assert.Equal(t, int64(20016), pool.nonstd.Size())
	assert.Equal(t, int64(2), pool.Stats()["nonstdblocks"])

	pool.Clear()
	assert.Equal(t, int64(2), ctx.Nonstdblocks())

	// fetched block larger than required, surplus goes to remnants.
	mem = pool.Alloc(10000)
	assert.Equal(t, int64(20016), pool.nonstd.Size())
	assert.Equal(t, int64(1), pool.remnants.Len())
	assert.Equal(t, int64(20016-10016), pool.remnants.Memory())
	assert.Equal(t, int64(1), ctx.Nonstdblocks())
	assert.Equal(t, int64(3), ctx.Sysallocs())

	pool.Destroy()
	ctx.Destroy()
}

func TestEndToEnd(t *testing.T) {
	ctx := newcontext(4096, nil)
	root := NewRoot(ctx)

	a1, a2 := root.Alloc(100), root.Alloc(100)
	assert.Equal(t, addr(a1)+104, addr(a2))
	assert.Equal(t, int64(1), ctx.Sysallocs())

	a3 := root.Alloc(5000)
	assert.Equal(t, int64(2), ctx.Sysallocs())

	root.Clear()
	assert.Equal(t, int64(1), ctx.Nonstdblocks())
	blk := ctx.Fetchnonstd(5000)
	require.NotNil(t, blk)
	assert.Equal(t, int64(5016), blk.Size())
	assert.Equal(t, addr(blk.Mem)+uintptr(blockhdrsize), addr(a3))
	ctx.Returnnonstd(blk)

	root.Destroy()
	ctx.Destroy()
	assert.Equal(t, int64(0), ctx.Stats()["inuse"])
}

func TestCalloc(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	mem := pool.Alloc(64)
	for i := range mem {
		mem[i] = 0xaa
	}
	pool.Clear()
	zeroed := pool.Calloc(64)
	require.Equal(t, addr(mem), addr(zeroed))
	for i, b := range zeroed {
		if b != 0 {
			t.Fatalf("expected zero at %v, got %x", i, b)
		}
	}

	pool.Destroy()
	ctx.Destroy()
}

func TestCoalescing(t *testing.T) {
	ctx := newcontext(4096, nil)
	root := NewRoot(ctx)
	pool := NewCoalescing(root)
	require.True(t, pool.Coalescing())
	require.False(t, root.Coalescing())

	mem := pool.Alloc(13)
	assert.Equal(t, 13, len(mem))
	assert.Equal(t, int(16+Sizetagsize), cap(mem))
	tag, ok := pool.Sizetag(mem)
	assert.True(t, ok)
	assert.Equal(t, int64(16), tag)

	next := pool.Alloc(100)
	assert.Equal(t, addr(mem)+uintptr(16+Sizetagsize), addr(next))
	tag, ok = pool.Sizetag(next[:10])
	assert.True(t, ok)
	assert.Equal(t, int64(104), tag)

	// tag survives writes within the requested length.
	for i := range next {
		next[i] = 0xff
	}
	tag, _ = pool.Sizetag(next)
	assert.Equal(t, int64(104), tag)

	_, ok = root.Sizetag(root.Alloc(10))
	assert.False(t, ok)

	// free includes the tag.
	pool.Free(next)
	assert.Equal(t, int64(112), pool.remnants.Memory())

	big := pool.Alloc(5000)
	tag, ok = pool.Sizetag(big)
	assert.True(t, ok)
	assert.Equal(t, int64(5000), tag)
	assert.Equal(t, int64(5000+Sizetagsize+blockhdrsize), pool.nonstd.Size())

	root.Destroy()
	assert.True(t, pool.dead)
	ctx.Destroy()
}

func TestClearResetsState(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	NewChild(pool).Alloc(100)
	NewCoalescing(pool)
	pool.Track(pool, func(interface{}) {})
	pool.Alloc(5000)
	for i := 0; i < 4; i++ {
		pool.Alloc(3000)
	}
	pool.Free(pool.Alloc(100))
	post := pool.Mark()
	require.NotNil(t, pool.child)
	require.NotNil(t, pool.nonstd)
	require.NotNil(t, pool.firstblock.Next)
	require.True(t, pool.remnants.Len() > 0)

	pool.Clear()
	assert.Nil(t, pool.child)
	assert.Nil(t, pool.owners)
	assert.Nil(t, pool.nonstd)
	assert.Nil(t, pool.firstblock.Next)
	assert.True(t, pool.curblock == pool.firstblock)
	assert.Equal(t, blockhdrsize+poolhdrsize, pool.current)
	assert.Equal(t, int64(0), pool.remnants.Len())
	assert.False(t, post.valid)
	assert.Equal(t, int64(1), ctx.Pools())

	pool.Destroy()
	ctx.Destroy()
}

func TestDestroyReturnsMemory(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)
	for i := 0; i < 5; i++ {
		pool.Alloc(3000)
	}
	pool.Alloc(5000)
	pool.Alloc(9000)
	stats := pool.Stats()
	require.Equal(t, int64(5), stats["stdblocks"])
	require.Equal(t, int64(2), stats["nonstdblocks"])

	pool.Destroy()
	assert.Equal(t, int64(5), ctx.Stdblocks())
	assert.Equal(t, int64(2), ctx.Nonstdblocks())
	assert.Equal(t, int64(0), ctx.Pools())
	assert.Equal(t, int64(5*4096+5016+9016), ctx.Stats()["inuse"])

	// blocks are reused by the next pool.
	pool = NewRoot(ctx)
	pool.Alloc(3000)
	pool.Alloc(3000)
	pool.Alloc(8000)
	assert.Equal(t, int64(7), ctx.Sysallocs())
	assert.Equal(t, int64(3), ctx.Stdblocks())
	assert.Equal(t, int64(1), ctx.Nonstdblocks())

	pool.Destroy()
	ctx.Destroy()
}

func TestUseAfterDestroy(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)
	pool.Destroy()

	fns := []func(){
		func() { pool.Alloc(10) },
		func() { pool.Calloc(10) },
		func() { pool.Free(make([]byte, 64)) },
		func() { pool.Clear() },
		func() { pool.Destroy() },
		func() { pool.Mark() },
		func() { pool.Track(pool, func(interface{}) {}) },
		func() { pool.Stats() },
		func() { NewChild(pool) },
		func() { pool.Parent() },
		func() { pool.Context() },
		func() { pool.Coalescing() },
		func() { pool.Sizetag(make([]byte, 64)) },
	}
	for _, fn := range fns {
		assert.PanicsWithValue(t, api.ErrorPoolDestroyed, fn)
	}
	assert.Equal(t, int64(0), ctx.Pools())
	ctx.Destroy()
}

func TestChildren(t *testing.T) {
	ctx := newcontext(4096, nil)
	root := NewRoot(ctx)

	c1, c2, c3 := NewChild(root), NewChild(root), NewChild(root)
	g1 := NewChild(c1)
	assert.True(t, c1.Parent() == root)
	assert.True(t, g1.Parent() == c1)
	assert.Nil(t, root.Parent())
	assert.True(t, root.child == c3)
	assert.Equal(t, int64(5), ctx.Pools())

	c2.Destroy()
	assert.True(t, root.child == c3)
	assert.True(t, c3.sibling == c1)
	assert.Nil(t, c1.sibling)
	assert.Equal(t, int64(2), root.Stats()["children"])

	c3.Destroy()
	assert.True(t, root.child == c1)

	root.Clear()
	assert.True(t, c1.dead)
	assert.True(t, g1.dead)
	assert.Nil(t, root.child)
	assert.Equal(t, int64(1), ctx.Pools())
	// every pool's first block is back in the free list.
	assert.Equal(t, int64(4), ctx.Stdblocks())

	root.Destroy()
	assert.Equal(t, int64(5), ctx.Stdblocks())
	ctx.Destroy()
}

func TestReentrantClear(t *testing.T) {
	ctx := newcontext(4096, nil)
	pool := NewRoot(ctx)

	calls := []string{}
	var register func(depth int)
	register = func(depth int) {
		pool.Track(depth, func(tracked interface{}) {
			calls = append(calls, fmt.Sprintf("owner-%v", tracked))
			if d := tracked.(int); d < 3 {
				register(d + 1)
				child := NewChild(pool)
				child.Track(child, func(interface{}) {
					calls = append(calls, "child")
				})
			}
		})
	}
	register(0)

	// a child that registers with its parent while being destroyed.
	child := NewChild(pool)
	child.Track(child, func(interface{}) {
		pool.Track("late", func(interface{}) {
			calls = append(calls, "late")
		})
	})

	pool.Clear()
	ref := []string{
		"owner-0", "owner-1", "owner-2", "owner-3",
		"child", "child", "child", "late",
	}
	assert.Equal(t, ref, calls)
	assert.Nil(t, pool.owners)
	assert.Nil(t, pool.child)
	assert.Equal(t, int64(1), ctx.Pools())

	pool.Destroy()
	ctx.Destroy()
}

func BenchmarkAllocFast(b *testing.B) {
	ctx := newcontext(Stdblocksize, nil)
	pool := NewRoot(ctx)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Alloc(64)
		if i%100 == 0 {
			pool.Clear()
		}
	}
}

func BenchmarkAllocRemnant(b *testing.B) {
	ctx := newcontext(Stdblocksize, nil)
	pool := NewRoot(ctx)
	pool.Alloc(firstavail(ctx))
	mem := pool.Alloc(1024)
	pool.Alloc(pool.curblock.Size() - pool.current)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Free(mem)
		mem = pool.Alloc(1024)
	}
}

func TestFootprint(t *testing.T) {
	ctx := newcontext(4096, nil)
	testcases := []struct {
		n, amount, blocksize int64
		coalesce             bool
	}{
		{0, 0, 4096, false},
		{13, 16, 4096, false},
		{13, 24, 4096, true},
		{4080, 4080, 4096, false},
		{4080, 4088, 4104, true},
		{5000, 5000, 5016, false},
	}
	for _, tcase := range testcases {
		amount, blocksize := ctx.Footprint(tcase.n, tcase.coalesce)
		assert.Equal(t, tcase.amount, amount, "n %v", tcase.n)
		assert.Equal(t, tcase.blocksize, blocksize, "n %v", tcase.n)
	}
	assert.Panics(t, func() { ctx.Footprint(-1, false) })
	ctx.Destroy()
}
