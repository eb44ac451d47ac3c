package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds shortcut commands to the root command.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newShareShortcut())
	rootCmd.AddCommand(newZipShortcut())
}

// newShareShortcut creates the 'share' shortcut command.
// Shortcut for: get <id> --share
func newShareShortcut() *cobra.Command {
	return shortcutFor("share <transfer-id>",
		"Share the images of a transfer (shortcut for 'get --share')",
		func(o *getOptions) { o.share = true })
}

// newZipShortcut creates the 'zip' shortcut command.
// Shortcut for: get <id> --select ...
func newZipShortcut() *cobra.Command {
	var keys []string
	cmd := shortcutFor("zip <transfer-id> [name|index...]",
		"Save the given files of a transfer as one archive (shortcut for 'get --select')",
		func(o *getOptions) { o.selectKeys = keys })
	cmd.Args = cobra.MinimumNArgs(1)
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		keys = args[1:]
		return run(cmd, args[:1])
	}
	return cmd
}

func shortcutFor(use, short string, set func(*getOptions)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := &getOptions{}
			set(opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runGet(GetContext(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args[0], opts)
		},
	}
}
