// Package historycmder provides the history command for past analyses.
package historycmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/sketchtable/cmd/sketchtable/sqlitepath"
	"github.com/papercomputeco/sketchtable/pkg/cliui"
	"github.com/papercomputeco/sketchtable/pkg/config"
	"github.com/papercomputeco/sketchtable/pkg/dotdir"
	"github.com/papercomputeco/sketchtable/pkg/history"
	"github.com/papercomputeco/sketchtable/pkg/logger"
	"github.com/papercomputeco/sketchtable/pkg/storage"
	"github.com/papercomputeco/sketchtable/pkg/utils"
)

const historyLongDesc string = `List, inspect and delete recorded analyses.

Every finished analysis, completed or failed, is recorded with its prompt,
reply, extracted table and usage. History is read from PostgreSQL when
--postgres (or storage.postgres_dsn) is set, otherwise from SQLite. Without
a configured path the usual locations are searched for history.db.

Examples:
  sketchtable history
  sketchtable history --limit 5
  sketchtable history show 3f2a9c1e-...
  sketchtable history delete 3f2a9c1e-...
  sketchtable history --sqlite ./history.db`

const historyShortDesc string = "List recorded analyses"

const promptWidth = 40

var storageFlags = []string{config.FlagSQLite, config.FlagPostgres}

type historyCommander struct {
	sqlitePath  string
	postgresDSN string
	limit       int

	logger *slog.Logger
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver, err := cmder.open(cmd)
			if err != nil {
				return err
			}
			defer driver.Close()

			return cmder.runList(cmd.Context(), cmd.OutOrStdout(), driver)
		},
	}

	cmder.addStorageFlags(cmd)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of analyses to list (0 for all)")

	cmd.AddCommand(newShowCmd(cmder))
	cmd.AddCommand(newDeleteCmd(cmder))

	return cmd
}

func newShowCmd(cmder *historyCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the reply and table of one analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := cmder.open(cmd)
			if err != nil {
				return err
			}
			defer driver.Close()

			return cmder.runShow(cmd.Context(), cmd.OutOrStdout(), driver, args[0])
		},
	}
	cmder.addStorageFlags(cmd)
	return cmd
}

func newDeleteCmd(cmder *historyCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one recorded analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := cmder.open(cmd)
			if err != nil {
				return err
			}
			defer driver.Close()

			if err := driver.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmder.forgetLast(cmd, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted analysis %s\n", args[0])
			return nil
		},
	}
	cmder.addStorageFlags(cmd)
	return cmd
}

func (c *historyCommander) addStorageFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &c.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &c.postgresDSN)
}

// open resolves the storage backend with flag > env > config precedence and
// falls back to searching for an existing SQLite database.
func (c *historyCommander) open(cmd *cobra.Command) (storage.Driver, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")
	c.logger = logger.New(logger.WithDebug(debug), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, storageFlags)

	cfg := config.StorageConfig{
		SQLitePath:  v.GetString("storage.sqlite_path"),
		PostgresDSN: v.GetString("storage.postgres_dsn"),
	}

	// Paths given on the command line are relative to the working directory.
	if cmd.Flags().Changed(config.Flags[config.FlagSQLite].Name) && cfg.SQLitePath != ":memory:" {
		if abs, err := filepath.Abs(cfg.SQLitePath); err == nil {
			cfg.SQLitePath = abs
		}
	}

	if cfg.PostgresDSN == "" && cfg.SQLitePath == "" {
		path, err := sqlitepath.ResolveSQLitePath("")
		if err != nil {
			return nil, err
		}
		if cfg.SQLitePath, err = filepath.Abs(path); err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
	}

	baseDir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	driver, backend, err := history.OpenDriver(cmd.Context(), cfg, baseDir)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("opened history", "backend", backend)

	return driver, nil
}

// forgetLast clears the remembered analysis when it is the one deleted, so
// a bare "sketchtable analyze" does not repeat it.
func (c *historyCommander) forgetLast(cmd *cobra.Command, id string) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	ddm := dotdir.NewManager()

	last, err := ddm.LoadLastAnalysis(configDir)
	if err != nil || last == nil || last.ID != id {
		return
	}
	if err := ddm.ClearLastAnalysis(configDir); err != nil {
		c.logger.Warn("clearing last analysis", "error", err)
	}
}

func (c *historyCommander) runList(ctx context.Context, out io.Writer, driver storage.Driver) error {
	records, err := driver.List(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, cliui.DimStyle.Render("No analyses recorded yet."))
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID,
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			rec.State,
			strconv.Itoa(rec.Tokens),
			fmt.Sprintf("$%.4f", rec.CostUSD),
			utils.Truncate(utils.FirstLine(rec.Prompt), promptWidth),
		})
	}

	fmt.Fprintln(out, cliui.RenderTable(
		[]string{"ID", "Started", "State", "Tokens", "Cost", "Prompt"},
		rows,
	))
	return nil
}
