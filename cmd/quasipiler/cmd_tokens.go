package main

import (
	"fmt"
	"os"

	"github.com/quasilang/quasipiler/format"
	"github.com/quasilang/quasipiler/quasi/reader"
	"github.com/spf13/cobra"
)

func newTokensCmd() *cobra.Command {
	var keepTrivia bool

	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "Dump the token stream of a QuasiLang file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := reader.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			var tok reader.Token
			for {
				if err := src.NextToken(&tok); err != nil {
					return fmt.Errorf("tokenize %s: %w", args[0], err)
				}
				if tok.Kind == reader.TokenEOF {
					return nil
				}
				if !keepTrivia && (tok.Kind == reader.TokenWhitespace || tok.Kind == reader.TokenComment) {
					continue
				}
				fmt.Fprintln(os.Stdout, format.TokenString(tok))
			}
		},
	}

	cmd.Flags().BoolVar(&keepTrivia, "trivia", false, "include whitespace and comment tokens")

	return cmd
}
