package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crm-seed",
		Short:         "Seed the CRM document store with fake data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newCustomersCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
