// Command velim answers probability queries on discrete Bayesian networks by
// variable elimination.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("velim: %v", err)
	}
}

func init() {
	cobra.EnableCommandSorting = false
}
