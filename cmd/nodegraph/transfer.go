package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nodegraph/internal/codec"
	"nodegraph/internal/loader"
)

var (
	exportFormat string
	exportOut    string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON or YAML snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		count, err := loader.New(a.svc, a.logger).LoadFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d nodes from %s\n", count, args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every node as a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exportFormat
		if format == "" && exportOut != "" {
			if c, err := codec.ForPath(exportOut); err == nil {
				format = c.Format()
			}
		}

		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		return a.svc.ExportTo(cmd.Context(), w, format)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format: json or yaml (default: from --out extension, else json)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(importCmd, exportCmd)
}
