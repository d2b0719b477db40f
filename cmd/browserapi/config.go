package main

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/entrhq/browserapi/pkg/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := config.NewFileStore(root.configPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(store.Path()); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", store.Path())
			}

			cfg, err := config.New(store)
			if err != nil {
				return err
			}
			if err := cfg.Manager.SaveAll(); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", store.Path())
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, section := range cfg.Manager.GetSections() {
				fmt.Fprintf(out, "[%s]\n", section.ID())
				data := section.Data()
				for _, key := range slices.Sorted(maps.Keys(data)) {
					value := data[key]
					if key == "api_key" && value != "" {
						value = "********"
					}
					fmt.Fprintf(out, "  %s = %v\n", key, value)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
