package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the nodes, connections and node_graphs tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.svc.InitDB(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database initialized")
		return nil
	},
}

var dropTablesCmd = &cobra.Command{
	Use:   "drop-tables",
	Short: "Drop every table and all data",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.svc.DropTables(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Tables dropped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd, dropTablesCmd)
}
