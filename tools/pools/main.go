package main

import "fmt"
import "os"

import "github.com/bnclabs/gopool/lib"
import "github.com/bnclabs/gopool/malloc"
import "github.com/goccy/go-json"
import s "github.com/bnclabs/gosettings"
import "github.com/spf13/cobra"

var options struct {
	blocksize int64
	capacity  int64
	poison    bool
	jsonout   bool
	verbose   bool
}

var rootCmd = &cobra.Command{
	Use:   "pools",
	Short: "Exercise hierarchical memory pools",
	Long: `pools runs allocation workloads against a pool tree and reports
context statistics, block reuse and the allocation path taken for
request sizes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if options.verbose {
			malloc.LogComponents("malloc")
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Int64Var(&options.blocksize, "blocksize", malloc.Stdblocksize,
		"size of standard blocks")
	flags.Int64Var(&options.capacity, "capacity", 0,
		"memory capacity in bytes, 0 for total system memory")
	flags.BoolVar(&options.poison, "poison", false,
		"poison blocks cached by context")
	flags.BoolVar(&options.jsonout, "json", false, "output in JSON format")
	flags.BoolVarP(&options.verbose, "verbose", "v", false,
		"log allocator events")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func contextsettings() s.Settings {
	setts := s.Settings{
		"blocksize": options.blocksize,
		"poison":    options.poison,
	}
	if options.capacity > 0 {
		setts["capacity"] = options.capacity
	}
	return setts
}

func printstats(title string, stats map[string]interface{}) error {
	if options.jsonout {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("%v: %w", title, err)
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("%v:\n%v\n", title, lib.Prettystats(stats, true))
	return nil
}
