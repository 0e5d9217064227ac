package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kubedbg/internal/config"
	"kubedbg/internal/kube"
	"kubedbg/internal/session"
	"kubedbg/pkg/logging"
)

// attachOptions collects the attach command's flag values.
type attachOptions struct {
	namespace   string
	pod         string
	container   string
	pid         int
	kubeContext string
	image       string
	timeout     time.Duration
	localPort   int
	launchCmd   string
	verbose     bool
}

func newAttachCmd() *cobra.Command {
	opts := &attachOptions{}

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach a debugger to a process in a running pod",
		Long: `Ensures a debug-agent ephemeral container is running alongside the
target container, forwards the agent's SSH port to a local endpoint,
and writes an attach descriptor for your debugger.

By default the descriptor path is printed and kubedbg waits for the
debugger connection to complete. With --launch-cmd the given command
is executed with the descriptor path as its last argument.

Examples:
  kubedbg attach --namespace payments --pod api-7f9c --container app --pid 12
  kubedbg attach --pod api-7f9c --container app --launch-cmd "code --open-debug"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "default", "Namespace of the target pod")
	cmd.Flags().StringVar(&opts.pod, "pod", "", "Name of the target pod (required)")
	cmd.Flags().StringVarP(&opts.container, "container", "c", "", "Name of the target container (required)")
	cmd.Flags().IntVar(&opts.pid, "pid", 1, "Process id of the debuggee inside the shared process namespace")
	cmd.Flags().StringVar(&opts.kubeContext, "context", "", "Kubeconfig context to use (default: current context)")
	cmd.Flags().StringVar(&opts.image, "image", "", "Debug-agent image (default from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "How long to wait for the debug container to start (default from config)")
	cmd.Flags().IntVar(&opts.localPort, "local-port", 0, "Local port for the debugger endpoint (default: ephemeral)")
	cmd.Flags().StringVar(&opts.launchCmd, "launch-cmd", "", "Command to launch with the descriptor path appended")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	_ = cmd.MarkFlagRequired("pod")
	_ = cmd.MarkFlagRequired("container")

	return cmd
}

func runAttach(ctx context.Context, opts *attachOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	applyAttachOverrides(&cfg, opts)

	level := logging.LevelInfo
	if opts.verbose {
		level = logging.LevelDebug
	}
	log := logging.NewSink(os.Stderr, level)
	defer log.Close()

	kubeContext := cfg.KubeContext
	if opts.kubeContext != "" {
		kubeContext = opts.kubeContext
	}
	client, err := kube.NewClientForContext(kubeContext)
	if err != nil {
		return err
	}

	coordinator := session.NewCoordinator(client, log, cfg, newLauncher(opts.launchCmd))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess, err := coordinator.RunAttachSession(ctx, session.AttachRequest{
		Pod:       kube.PodRef{Namespace: opts.namespace, Name: opts.pod},
		Container: opts.container,
		ProcessID: opts.pid,
		LocalPort: opts.localPort,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Debug container %q ready, endpoint %s\n", sess.DebugContainer, sess.LocalEndpoint().Address())
	fmt.Printf("Attach descriptor: %s\n", sess.DescriptorPath)
	fmt.Println("Waiting for the debugger to connect. Press Ctrl+C to end the session.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sess.Done():
		fmt.Println("Debug session ended.")
	case <-sigChan:
		fmt.Println("\nReceived interrupt signal. Ending debug session...")
		sess.Close()
		<-sess.Done()
	}
	return nil
}

func applyAttachOverrides(cfg *config.Config, opts *attachOptions) {
	if opts.image != "" {
		cfg.Agent.Image = opts.image
	}
	if opts.timeout > 0 {
		cfg.Attach.Timeout = opts.timeout
	}
}

// newLauncher returns the hand-off step for the session: either run the
// user's command with the descriptor path appended, or do nothing and let
// the printed path speak for itself.
func newLauncher(launchCmd string) session.Launcher {
	if launchCmd == "" {
		return session.LauncherFunc(func(ctx context.Context, descriptor *session.AttachDescriptor, descriptorPath string) error {
			return nil
		})
	}
	return session.LauncherFunc(func(ctx context.Context, descriptor *session.AttachDescriptor, descriptorPath string) error {
		parts := strings.Fields(launchCmd)
		if len(parts) == 0 {
			return fmt.Errorf("launch command is empty")
		}
		args := append(parts[1:], descriptorPath)
		c := exec.CommandContext(ctx, parts[0], args...)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Start(); err != nil {
			return fmt.Errorf("failed to start launch command %q: %w", launchCmd, err)
		}
		// The launcher only hands off; the debugger's lifetime is its own.
		go func() { _ = c.Wait() }()
		return nil
	})
}
