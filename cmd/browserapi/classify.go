package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrhq/browserapi/pkg/netfail"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <error message>",
		Short: "Show how a navigation error would be reported",
		Long: "Classify runs a browser navigation error message through the same rules " +
			"the navigate endpoint uses and prints the category, title and hint.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := netfail.Classify(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "category: %s\n", result.Category)
			if result.Category == netfail.Unclassified {
				return nil
			}
			fmt.Fprintf(out, "title:    %s\n", result.Title)
			fmt.Fprintf(out, "hint:     %s\n", result.Hint)
			return nil
		},
	}
}
