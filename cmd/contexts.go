package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"kubedbg/internal/kube"
)

func newContextsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contexts",
		Short: "List the kubeconfig contexts kubedbg can attach through",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := kube.CurrentContext()
			if err != nil {
				// A missing current context is not fatal for listing.
				current = ""
			}
			contexts, err := kube.AvailableContexts()
			if err != nil {
				return err
			}
			sort.Strings(contexts)
			for _, name := range contexts {
				marker := "  "
				if name == current {
					marker = "* "
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, name)
			}
			return nil
		},
	}
}
