package main

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "browserapi",
		Short:         "HTTP control plane for one AI-driven browser session",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.browserapi/config.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newClassifyCmd(),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte("browserapi " + Version + "\n"))
			return err
		},
	}
}
