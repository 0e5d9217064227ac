package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kubedbg",
	Short: "Attach a debugger to a process running inside a Kubernetes pod",
	Long: `kubedbg injects a debug-agent sidecar into a running pod as an
ephemeral container, tunnels its SSH port to a local endpoint, and
emits an attach descriptor your debugger can launch against. The
target pod is never restarted.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed attaches)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kubedbg version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newAttachCmd())
	rootCmd.AddCommand(newContextsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
