package main

import "fmt"
import "time"
import "math/rand"

import "github.com/bnclabs/gopool/malloc"
import humanize "github.com/dustin/go-humanize"
import "github.com/spf13/cobra"

type workload struct {
	count    int
	maxsize  int64
	bigpct   int
	childpct int
	leafpct  int
	clearpct int
	freepct  int
	seed     int64
}

var loadopts workload

func init() {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run a random allocation workload on a pool tree",
		Long: `The load command allocates from a randomly growing tree of pools,
destroys leaf pools, frees and clears, then prints context and root
pool statistics.

Example:
  pools load --count 100000 --blocksize 4096
  pools load --count 10000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runload(loadopts)
		},
	}
	addworkloadflags(cmd, &loadopts)
	rootCmd.AddCommand(cmd)
}

func addworkloadflags(cmd *cobra.Command, wl *workload) {
	flags := cmd.Flags()
	flags.IntVar(&wl.count, "count", 100000, "number of operations")
	flags.Int64Var(&wl.maxsize, "maxsize", 512, "maximum size of small requests")
	flags.IntVar(&wl.bigpct, "bigpct", 1, "percentage of oversized requests")
	flags.IntVar(&wl.childpct, "childpct", 2, "percentage of child creation")
	flags.IntVar(&wl.leafpct, "leafpct", 2, "percentage of leaf pool destroys")
	flags.IntVar(&wl.clearpct, "clearpct", 1, "percentage of root clears")
	flags.IntVar(&wl.freepct, "freepct", 10, "percentage of frees")
	flags.Int64Var(&wl.seed, "seed", 0, "random seed, 0 picks current time")
}

func runload(wl workload) error {
	if wl.seed == 0 {
		wl.seed = time.Now().UnixNano()
	}
	if wl.maxsize <= 0 {
		return fmt.Errorf("invalid maxsize %v", wl.maxsize)
	}
	ctx := malloc.NewContext(contextsettings(), nil)
	defer ctx.Destroy()

	start := time.Now()
	result, err := wl.run(ctx, rand.New(rand.NewSource(wl.seed)))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	result["seed"] = wl.seed
	result["elapsed"] = elapsed.String()
	if !options.jsonout {
		fmsg := "%v operations, %v allocated in %v\n"
		allocated := uint64(result["allocated"].(int64))
		fmt.Printf(fmsg, wl.count, humanize.Bytes(allocated), elapsed)
	}
	if err := printstats("workload", result); err != nil {
		return err
	}
	return printstats("context", ctx.Stats())
}

// run workload on a new root pool created from ctx, root pool is
// destroyed before returning, even when the workload fails.
func (wl workload) run(ctx *malloc.Context, rnd *rand.Rand) (result map[string]interface{}, err error) {
	var root *malloc.Pool

	defer func() {
		if r := recover(); r != nil {
			if root != nil {
				root.Destroy()
			}
			result, err = nil, fmt.Errorf("workload: %v", r)
		}
	}()

	root = malloc.NewRoot(ctx)
	pools := []*malloc.Pool{root}
	children := map[*malloc.Pool]int{}
	last := map[*malloc.Pool][]byte{}
	nallocs, nfrees, allocated := int64(0), int64(0), int64(0)
	nchildren, nleaves, nclears := int64(0), int64(0), int64(0)

	for i := 0; i < wl.count; i++ {
		off := rnd.Intn(len(pools))
		pool, op := pools[off], rnd.Intn(100)

		switch {
		case op < wl.childpct:
			child := malloc.NewChild(pool)
			if rnd.Intn(4) == 0 {
				child = malloc.NewCoalescing(pool)
			}
			pools, children[pool] = append(pools, child), children[pool]+1
			nchildren++

		case op < wl.childpct+wl.leafpct:
			if pool == root || children[pool] > 0 {
				continue
			}
			children[pool.Parent()]--
			delete(children, pool)
			delete(last, pool)
			pool.Destroy()
			pools = append(pools[:off], pools[off+1:]...)
			nleaves++

		case op < wl.childpct+wl.leafpct+wl.clearpct:
			root.Clear()
			pools = pools[:1]
			children, last = map[*malloc.Pool]int{}, map[*malloc.Pool][]byte{}
			nclears++

		case op < wl.childpct+wl.leafpct+wl.clearpct+wl.freepct:
			if mem, ok := last[pool]; ok {
				pool.Free(mem)
				delete(last, pool)
				nfrees++
			}

		default:
			size := rnd.Int63n(wl.maxsize + 1)
			if rnd.Intn(100) < wl.bigpct {
				size = ctx.Blocksize() + rnd.Int63n(8*ctx.Blocksize())
			}
			mem := pool.Alloc(size)
			for j := range mem {
				mem[j] = byte(i)
			}
			last[pool] = mem
			nallocs, allocated = nallocs+1, allocated+size
		}
	}

	result = map[string]interface{}{
		"operations": int64(wl.count),
		"n_allocs":   nallocs,
		"n_frees":    nfrees,
		"n_children": nchildren,
		"n_leaves":   nleaves,
		"n_clears":   nclears,
		"allocated":  allocated,
		"livepools":  int64(len(pools)),
		"root":       root.Stats(),
	}
	root.Destroy()
	return result, nil
}
