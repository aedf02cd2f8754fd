package main

import (
	"github.com/quasilang/quasipiler/quasi/grouper"
	"github.com/quasilang/quasipiler/quasi/lsp"
	"github.com/spf13/cobra"
)

func newLSPCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := lsp.NewServer("0.1.0", limit)
			return server.RunStdio()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", grouper.DefaultLimit, "node budget per group")

	return cmd
}
