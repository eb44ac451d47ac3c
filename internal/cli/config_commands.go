package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/resources"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dropget configuration",
		Long: `Configuration management commands for dropget.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for dropget.

The configuration is saved to ~/.config/dropget/config unless --config is
given. Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view it.")
					return nil
				}
			}

			cfg := runConfigInit(newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()))
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Configuration saved to: %s\n", path)
			if cfg.ProxyUser != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "The proxy password is not stored; set DROPGET_PROXY_PASSWORD or enter it when asked.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// runConfigInit asks for every setting, offering the defaults.
func runConfigInit(p *prompter) *config.Config {
	cfg := config.NewConfig()

	fmt.Fprintln(p.out, "dropget Configuration Setup")
	fmt.Fprintln(p.out, "===========================")
	fmt.Fprintln(p.out)

	for cfg.APIBaseURL == "" {
		cfg.APIBaseURL = p.line("Transfer service URL (required)", "")
		if cfg.APIBaseURL == "" {
			fmt.Fprintln(p.out, "  Error: the service URL is required")
		}
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Download Settings (press Enter for defaults)")
	fmt.Fprintln(p.out, "--------------------------------------------")
	cfg.Concurrency = int(p.number("Files fetched at once", int64(cfg.Concurrency)))
	if p.yesNo("Admit files by memory budget instead of a fixed count?", false) {
		cfg.AdmissionMode = config.AdmissionBudget
		cfg.ByteBudget = p.number("Byte budget", cfg.ByteBudget)
	}
	cfg.OutputDir = p.line("Save files to", config.DownloadsDirectory())

	fmt.Fprintln(p.out)
	if p.yesNo("Configure proxy?", false) {
		fmt.Fprintln(p.out, "Proxy modes: no-proxy, system, basic, ntlm")
		cfg.ProxyMode = p.line("Proxy mode", "system")
		if cfg.ProxyMode != "no-proxy" && cfg.ProxyMode != "system" {
			cfg.ProxyHost = p.line("Proxy host", "")
			cfg.ProxyPort = int(p.number("Proxy port", int64(cfg.ProxyPort)))
			cfg.ProxyUser = p.line("Proxy user (empty for none)", "")
		}
	}

	fmt.Fprintln(p.out)
	if p.yesNo("Share images through an S3 bucket?", false) {
		cfg.ShareBucket = p.line("Bucket", "")
		cfg.S3Region = p.line("Region", "us-east-1")
		cfg.S3Endpoint = p.line("Endpoint (empty for AWS)", "")
	}
	return cfg
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration, merged from:
  1. Configuration file (~/.config/dropget/config)
  2. Environment variables (DROPGET_*)
  3. Command-line flags (--api-url, --proxy-mode)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, _ := configPath()
			printConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}

	return cmd
}

func printConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Service:")
	if cfg.APIBaseURL != "" {
		fmt.Fprintf(out, "  API URL:     %s\n", cfg.APIBaseURL)
	} else {
		fmt.Fprintln(out, "  API URL:     <not set>")
	}
	fmt.Fprintf(out, "  Rate limit:  %g/s (burst %g)\n", cfg.APIRatePerSec, cfg.APIBurst)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Downloads:")
	if cfg.AdmissionMode == config.AdmissionBudget {
		fmt.Fprintf(out, "  Admission:   budget of %s (unknown sizes weigh %s)\n",
			resources.FormatBytes(cfg.ByteBudget), resources.FormatBytes(cfg.UnknownSizeWeight))
	} else {
		fmt.Fprintf(out, "  Admission:   %d files at once\n", cfg.Concurrency)
	}
	if cfg.MaxBandwidth > 0 {
		fmt.Fprintf(out, "  Bandwidth:   %s/s\n", resources.FormatBytes(cfg.MaxBandwidth))
	} else {
		fmt.Fprintln(out, "  Bandwidth:   unlimited")
	}
	dir, err := cfg.ResolveOutputDir()
	if err != nil {
		dir = cfg.OutputDir
	}
	fmt.Fprintf(out, "  Output dir:  %s\n", dir)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy:")
	fmt.Fprintf(out, "  Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Host: %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(out, "  User: %s\n", cfg.ProxyUser)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Sharing:")
	if cfg.ShareBucket != "" {
		fmt.Fprintf(out, "  Bucket: s3://%s/%s (links valid %s)\n", cfg.ShareBucket, cfg.SharePrefix, cfg.ShareTTL)
		if cfg.AWSAccessKeyID != "" {
			// Never print any part of the key
			fmt.Fprintln(out, "  Credentials: <set>")
		}
	} else {
		fmt.Fprintln(out, "  disabled (images are saved as an archive instead)")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", path)
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintln(out, "Status: file does not exist. Create it with: dropget config init")
			}
			return nil
		},
	}

	return cmd
}
