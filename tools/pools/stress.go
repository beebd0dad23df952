package main

import "fmt"
import "time"
import "math/rand"

import "github.com/bnclabs/gopool/malloc"
import "github.com/spf13/cobra"
import "golang.org/x/sync/errgroup"

var stressopts struct {
	workload
	workers int
	shared  bool
}

func init() {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run allocation workloads concurrently",
		Long: `The stress command runs the load workload on several goroutines.
Each goroutine owns its pool tree, contexts are either one per worker
or shared by all workers.

Example:
  pools stress --workers 8 --count 100000
  pools stress --workers 8 --shared --poison`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runstress()
		},
	}
	addworkloadflags(cmd, &stressopts.workload)
	cmd.Flags().IntVar(&stressopts.workers, "workers", 4, "number of workers")
	cmd.Flags().BoolVar(&stressopts.shared, "shared", false,
		"share one context between workers")
	rootCmd.AddCommand(cmd)
}

func runstress() error {
	if stressopts.workers <= 0 {
		return fmt.Errorf("invalid workers %v", stressopts.workers)
	} else if stressopts.maxsize <= 0 {
		return fmt.Errorf("invalid maxsize %v", stressopts.maxsize)
	}
	seed := stressopts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	contexts := make([]*malloc.Context, stressopts.workers)
	for i := range contexts {
		if stressopts.shared && i > 0 {
			contexts[i] = contexts[0]
			continue
		}
		setts := contextsettings()
		setts["name"] = fmt.Sprintf("worker-%v", i)
		contexts[i] = malloc.NewContext(setts, nil)
	}

	start := time.Now()
	results := make([]map[string]interface{}, stressopts.workers)
	var g errgroup.Group
	for i := 0; i < stressopts.workers; i++ {
		i := i
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(seed + int64(i)))
			result, err := stressopts.workload.run(contexts[i], rnd)
			if err != nil {
				return fmt.Errorf("worker %v: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	summary := map[string]interface{}{
		"workers": int64(stressopts.workers),
		"shared":  stressopts.shared,
		"seed":    seed,
		"elapsed": elapsed.String(),
	}
	nallocs, allocated := int64(0), int64(0)
	for _, result := range results {
		nallocs += result["n_allocs"].(int64)
		allocated += result["allocated"].(int64)
	}
	summary["n_allocs"], summary["allocated"] = nallocs, allocated
	if secs := elapsed.Seconds(); secs > 0 {
		summary["allocs_per_sec"] = int64(float64(nallocs) / secs)
	}
	if err := printstats("stress", summary); err != nil {
		return err
	}

	ncontexts := len(contexts)
	if stressopts.shared {
		ncontexts = 1
	}
	for i, ctx := range contexts[:ncontexts] {
		if err := printstats(fmt.Sprintf("context %v", i), ctx.Stats()); err != nil {
			return err
		}
		ctx.Destroy()
	}
	return nil
}
