// Package sketchtablecmder
package sketchtablecmder

import (
	"github.com/spf13/cobra"

	analyzecmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/analyze"
	authcmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/auth"
	configcmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/config"
	historycmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/history"
	initcmder "github.com/papercomputeco/sketchtable/cmd/sketchtable/init"
	versioncmder "github.com/papercomputeco/sketchtable/cmd/version"
)

const sketchtableLongDesc string = `Sketchtable turns sketches into tables.

It sends a sketch image and a prompt to a multimodal chat-completions API,
streams the reply into a terminal UI, keeps a running token and cost count,
and renders any pipe-delimited table in the reply as it arrives.

Get started:
  sketchtable auth openai                         Store an API key
  sketchtable analyze sketch.png -p "Tabulate"    Analyze a sketch
  sketchtable history                             List past analyses`

const sketchtableShortDesc string = "Sketchtable - stream sketches into tables"

func NewSketchtableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "sketchtable",
		Short:        sketchtableShortDesc,
		Long:         sketchtableLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .sketchtable/ directory")

	// Add subcommands
	cmd.AddCommand(analyzecmder.NewAnalyzeCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
