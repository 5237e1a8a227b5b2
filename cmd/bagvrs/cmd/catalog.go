/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var errNoCatalog = errors.New("no catalog directory (use --catalog or catalog_dir in the config)")

func newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse recorded conversions",
		Long: `Browse the conversions recorded by 'bagvrs convert --catalog'.

Examples:
  bagvrs catalog list --catalog ./catalog
  bagvrs catalog show 2bZ8x1Xo0sE6lH3H7cW2YzDq0aB --catalog ./catalog
  bagvrs catalog delete 2bZ8x1Xo0sE6lH3H7cW2YzDq0aB --catalog ./catalog`,
	}
	catalogCmd.PersistentFlags().String("catalog", "", "Catalog directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			dir := stringFlag(cmd, "catalog", a.cfg.CatalogDir)
			if dir == "" {
				return errNoCatalog
			}
			cat, err := getContainer().OpenCatalog(dir)
			if err != nil {
				return err
			}
			defer cat.Close()

			entries, err := cat.List(limit)
			if err != nil {
				return err
			}
			return outputEntries(cmd.OutOrStdout(), a.format, entries)
		},
	}
	listCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries (0 = all)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			dir := stringFlag(cmd, "catalog", a.cfg.CatalogDir)
			if dir == "" {
				return errNoCatalog
			}
			cat, err := getContainer().OpenCatalog(dir)
			if err != nil {
				return err
			}
			defer cat.Close()

			e, err := cat.Lookup(args[0])
			if err != nil {
				return err
			}
			return outputEntry(cmd.OutOrStdout(), a.format, e)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Forget one conversion",
		Long:  "Remove a conversion from the catalog. The container itself is left alone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			dir := stringFlag(cmd, "catalog", a.cfg.CatalogDir)
			if dir == "" {
				return errNoCatalog
			}
			cat, err := getContainer().OpenCatalog(dir)
			if err != nil {
				return err
			}
			defer cat.Close()

			e, err := cat.Lookup(args[0])
			if err != nil {
				return err
			}
			if err := cat.Delete(e.ID); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", e.ID)
			return nil
		},
	}

	catalogCmd.AddCommand(listCmd, showCmd, deleteCmd)
	return catalogCmd
}
