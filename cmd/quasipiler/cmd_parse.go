package main

import (
	"fmt"
	"os"

	"github.com/quasilang/quasipiler/format"
	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/grouper"
	"github.com/quasilang/quasipiler/quasi/reader"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var input string
	var limit int
	var mode string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a QuasiLang file and dump its syntax tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := input
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("input file is required")
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("input file is required: %w", err)
			}
			if !info.Mode().IsRegular() {
				return fmt.Errorf("input is not a regular file: %s", path)
			}

			src, err := reader.Open(path)
			if err != nil {
				return err
			}
			defer src.Close()

			g, err := grouper.New(src, limit)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			root, err := g.Parse(ast.KindFile)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			var enc format.Encoder
			switch outputFormat {
			case "tree":
				treeMode := format.Full
				if mode == "compact" {
					treeMode = format.Compact
				} else if mode != "full" {
					return fmt.Errorf("unknown mode: %s (expected full or compact)", mode)
				}
				enc = format.NewTreeEncoder(os.Stdout, treeMode)
			case "json":
				enc = format.NewJSONEncoder(os.Stdout)
			default:
				return fmt.Errorf("unknown format: %s (expected tree or json)", outputFormat)
			}
			if err := enc.Encode(root); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input file (alternative to the positional argument)")
	cmd.Flags().IntVar(&limit, "limit", grouper.DefaultLimit, "node budget per group")
	cmd.Flags().StringVarP(&mode, "mode", "m", "full", "placeholder rendering (full, compact)")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "tree", "output format (tree, json)")

	return cmd
}
