package main

import "fmt"

import "github.com/bnclabs/gopool/malloc"
import "github.com/spf13/cobra"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print library version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gopool %s\n", malloc.Versionstr())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
