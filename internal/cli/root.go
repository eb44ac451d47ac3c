// Package cli provides the command-line interface for dropget.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dropshare/dropget/internal/api"
	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	proxyMode  string
	verbose    bool
	debug      bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Exit codes returned by ExitCode.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitNotFound = 2
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dropget",
		Short: "Download the files of a drop transfer",
		Long: `dropget ` + version.Version + ` - Built: ` + version.BuildTime + `
Fetches every file of a transfer concurrently, shows previews, and saves
the result as individual files or a single zip archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logger.SetLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Transfer metadata service URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&proxyMode, "proxy-mode", "", "Proxy mode: no-proxy, system, basic, ntlm (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.String()
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	gen := map[string]func(*cobra.Command, io.Writer) error{
		"bash":       func(c *cobra.Command, w io.Writer) error { return c.GenBashCompletion(w) },
		"zsh":        func(c *cobra.Command, w io.Writer) error { return c.GenZshCompletion(w) },
		"fish":       func(c *cobra.Command, w io.Writer) error { return c.GenFishCompletion(w, true) },
		"powershell": func(c *cobra.Command, w io.Writer) error { return c.GenPowerShellCompletion(w) },
	}
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate a shell completion script",
		Long: `Generate a shell completion script for dropget.

  bash:        source <(dropget completion bash)
  zsh:         dropget completion zsh > "${fpath[1]}/_dropget"
  fish:        dropget completion fish | source
  powershell:  dropget completion powershell | Out-String | Invoke-Expression`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gen[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}

// Execute runs the CLI and returns the process exit code. SIGINT and
// SIGTERM cancel the context handed to every command.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootContext, cancelFunc = ctx, stop

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling downloads...")
		case <-finished:
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to a process exit code. A transfer that
// does not exist has its own code so scripts can tell it from failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case api.IsNotFound(err):
		return ExitNotFound
	default:
		return ExitFailure
	}
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig merges the config file, the DROPGET_* environment and the
// global flags, in increasing precedence, and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(config.NewEnv())

	if apiBaseURL != "" {
		cfg.APIBaseURL = apiBaseURL
	}
	if proxyMode != "" {
		cfg.ProxyMode = proxyMode
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.NeedsProxyPassword() {
		password, err := promptPassword(fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
		if err != nil {
			if errors.Is(err, errNotInteractive) {
				return nil, fmt.Errorf("proxy user %q has no password: set DROPGET_PROXY_PASSWORD", cfg.ProxyUser)
			}
			return nil, err
		}
		cfg.ProxyPassword = password
	}
	return cfg, nil
}
