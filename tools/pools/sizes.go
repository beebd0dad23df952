package main

import "fmt"

import "github.com/bnclabs/gopool/malloc"
import humanize "github.com/dustin/go-humanize"
import "github.com/spf13/cobra"

var sizesopts struct {
	coalesce bool
}

func init() {
	cmd := &cobra.Command{
		Use:   "sizes <size>...",
		Short: "Show reservation and block for request sizes",
		Long: `The sizes command shows, for every request size, the aligned
amount reserved from a pool and the block that would serve it.

Example:
  pools sizes 100 5000 --blocksize 4096
  pools sizes 13 64KiB --coalesce`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runsizes(args)
		},
	}
	cmd.Flags().BoolVar(&sizesopts.coalesce, "coalesce", false,
		"requests from a coalescing pool")
	rootCmd.AddCommand(cmd)
}

func runsizes(args []string) error {
	ctx := malloc.NewContext(contextsettings(), nil)
	defer ctx.Destroy()

	rows := []interface{}{}
	for _, arg := range args {
		n, err := humanize.ParseBytes(arg)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", arg, err)
		}
		if n > uint64(malloc.Maxalloc) {
			return fmt.Errorf("size %v exceeds %v", n, malloc.Maxalloc)
		}
		amount, blocksize := ctx.Footprint(int64(n), sizesopts.coalesce)
		kind := "standard"
		if blocksize != ctx.Blocksize() {
			kind = "oversized"
		}
		if !options.jsonout {
			fmsg := "size %8v amount %8v %9v block %v\n"
			fmt.Printf(fmsg, n, amount, kind, humanize.IBytes(uint64(blocksize)))
			continue
		}
		rows = append(rows, map[string]interface{}{
			"size": n, "amount": amount, "block": kind, "blocksize": blocksize,
		})
	}
	if options.jsonout {
		return printstats("sizes", map[string]interface{}{
			"blocksize": ctx.Blocksize(), "sizes": rows,
		})
	}
	return nil
}
