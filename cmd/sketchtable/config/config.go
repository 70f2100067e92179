// Package configcmder provides the config command for managing persistent
// sketchtable configuration stored in the .sketchtable/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/sketchtable/pkg/cliui"
	"github.com/papercomputeco/sketchtable/pkg/config"
)

const configLongDesc string = `Manage persistent sketchtable configuration.

Configuration is stored as config.toml in the .sketchtable/ directory and
provides default values for command flags. CLI flags and SKETCHTABLE_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.endpoint, api.model, api.temperature, api.top_p, api.max_tokens, api.user,
  stream.progress_cap, pricing.file, instructions.path,
  storage.sqlite_path, storage.postgres_dsn

Use subcommands to get, set, or list configuration values:
  sketchtable config set <key> <value>    Set a configuration value
  sketchtable config get <key>            Get a configuration value
  sketchtable config list                 List all configuration values

Examples:
  sketchtable config set api.model gpt-4o-mini
  sketchtable config set instructions.path ./legend.xlsx
  sketchtable config get api.endpoint
  sketchtable config list`

const configShortDesc string = "Manage persistent sketchtable configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(out io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
