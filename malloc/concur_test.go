package malloc

import "sync"
import "testing"
import "math/rand"
import "sync/atomic"

import s "github.com/bnclabs/gosettings"
import "github.com/stretchr/testify/assert"

var ccallocated, ccverified int64

func TestConcur(t *testing.T) {
	var wg sync.WaitGroup

	nroutines, repeat := 16, 20000
	setts := s.Settings{"blocksize": int64(4096), "poison": true}
	ctx := NewContext(setts, nil)

	wg.Add(nroutines)
	for n := 0; n < nroutines; n++ {
		go testpooltree(t, ctx, byte(n+1), repeat, &wg)
	}
	wg.Wait()

	t.Logf("ccallocated:%v ccverified:%v\n", ccallocated, ccverified)
	assert.Equal(t, ccallocated, ccverified)
	assert.Equal(t, int64(0), ctx.Pools())

	stats := ctx.Stats()
	t.Logf("sysallocs:%v stdreuses:%v nonstdreuses:%v\n",
		stats["n_sysallocs"], stats["n_stdreuses"], stats["n_nonstdreuses"])
	ctx.Destroy()
	assert.Equal(t, int64(0), ctx.Stats()["inuse"])
}

func testpooltree(
	t *testing.T, ctx *Context, tag byte, repeat int, wg *sync.WaitGroup) {

	defer wg.Done()

	rnd := rand.New(rand.NewSource(int64(tag)))
	root := NewRoot(ctx)
	var child *Pool
	live := [][]byte{}

	verify := func() {
		for _, mem := range live {
			for _, b := range mem {
				if b != tag {
					t.Errorf("expected %v, got %v", tag, b)
					return
				}
			}
			atomic.AddInt64(&ccverified, 1)
		}
		live = live[:0]
	}

	for i := 0; i < repeat; i++ {
		pool := root
		if child != nil && rnd.Intn(2) == 0 {
			pool = child
		}
		size := rnd.Int63n(512)
		if rnd.Intn(100) < 2 {
			size = 4096 + rnd.Int63n(8192)
		}
		mem := pool.Alloc(size)
		for j := range mem {
			mem[j] = tag
		}
		live = append(live, mem)
		atomic.AddInt64(&ccallocated, 1)

		switch {
		case i%997 == 0:
			verify()
			root.Clear()
			child = nil
		case i%101 == 0:
			if child != nil {
				verify()
				child.Destroy()
			}
			child = NewChild(root)
		}
	}
	verify()
	root.Destroy()
}
