// Package analyzecmder provides the analyze command, which streams a sketch
// analysis into a terminal UI or to stdout.
package analyzecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/sketchtable/pkg/config"
	"github.com/papercomputeco/sketchtable/pkg/credentials"
	"github.com/papercomputeco/sketchtable/pkg/dotdir"
	"github.com/papercomputeco/sketchtable/pkg/history"
	"github.com/papercomputeco/sketchtable/pkg/history/worker"
	"github.com/papercomputeco/sketchtable/pkg/imagefile"
	"github.com/papercomputeco/sketchtable/pkg/instructions"
	"github.com/papercomputeco/sketchtable/pkg/llm"
	"github.com/papercomputeco/sketchtable/pkg/logger"
	"github.com/papercomputeco/sketchtable/pkg/openai"
	"github.com/papercomputeco/sketchtable/pkg/stream"
	"github.com/papercomputeco/sketchtable/pkg/usage"
)

const analyzeLongDesc string = `Analyze a sketch and stream the reply into a table.

The image and prompt are sent to a multimodal chat-completions API together
with the instruction file as the system message. The reply streams into a
terminal UI: the text on the left, any pipe-delimited table on the right,
with progress and a running token and cost estimate.

Without an image argument the previous analysis is repeated.

The API key is read from the provider's environment variable (OPENAI_API_KEY
for openai), then from credentials stored with "sketchtable auth", then from
~/.codex/auth.json. When none is found you are prompted and the key is
stored.

Keys in the terminal UI:
  c, esc   cancel the running stream
  r        run the analysis again
  tab      switch between the reply and the table
  q        quit

Examples:
  sketchtable analyze sketch.png -p "Turn this flowchart into a table"
  sketchtable analyze sketch.png -p "List the shapes" --plain
  sketchtable analyze sketch.png -p "Describe" --watch
  sketchtable analyze sketch.png -p "Describe" --record reply.sse
  sketchtable analyze`

const analyzeShortDesc string = "Analyze a sketch and stream the reply into a table"

// registryFlags are the config-backed flags of the analyze command.
var registryFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagTemperature,
	config.FlagTopP,
	config.FlagMaxTokens,
	config.FlagUser,
	config.FlagProgressCap,
	config.FlagPricingFile,
	config.FlagInstructions,
	config.FlagSQLite,
	config.FlagPostgres,
}

type analyzeCommander struct {
	imagePath string
	prompt    string
	provider  string

	endpoint         string
	model            string
	temperature      float64
	topP             float64
	maxTokens        int
	user             string
	progressCap      int
	pricingFile      string
	instructionsPath string
	sqlitePath       string
	postgresDSN      string

	plain      bool
	watch      bool
	recordPath string

	configDir string
	debug     bool

	// instructionsExplicit is set when the instruction file was named by a
	// flag, in which case a missing file is an error.
	instructionsExplicit bool

	logger *slog.Logger
}

func NewAnalyzeCmd() *cobra.Command {
	cmder := &analyzeCommander{}

	cmd := &cobra.Command{
		Use:   "analyze [image]",
		Short: analyzeShortDesc,
		Long:  analyzeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, registryFlags)
			cmder.applyViper(v)

			cmder.instructionsExplicit = cmd.Flags().Changed(config.Flags[config.FlagInstructions].Name)
			if cmd.Flags().Changed(config.Flags[config.FlagSQLite].Name) && cmder.sqlitePath != ":memory:" {
				if abs, err := filepath.Abs(cmder.sqlitePath); err == nil {
					cmder.sqlitePath = abs
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cmder.imagePath = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.prompt, "prompt", "p", "", "Prompt sent with the sketch")
	cmd.Flags().StringVar(&cmder.provider, "provider", "openai", "Credential provider for the API key (openai, openrouter)")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Stream plain text to stdout instead of the terminal UI")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Re-run the analysis whenever the image file changes")
	cmd.Flags().StringVar(&cmder.recordPath, "record", "", "Append the raw response stream to a file")

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddFloatFlag(cmd, config.Flags, config.FlagTemperature, &cmder.temperature)
	config.AddFloatFlag(cmd, config.Flags, config.FlagTopP, &cmder.topP)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &cmder.user)
	config.AddIntFlag(cmd, config.Flags, config.FlagProgressCap, &cmder.progressCap)
	config.AddStringFlag(cmd, config.Flags, config.FlagPricingFile, &cmder.pricingFile)
	config.AddStringFlag(cmd, config.Flags, config.FlagInstructions, &cmder.instructionsPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)

	return cmd
}

// applyViper copies the resolved flag > env > file > default values.
func (c *analyzeCommander) applyViper(v *viper.Viper) {
	c.endpoint = v.GetString("api.endpoint")
	c.model = v.GetString("api.model")
	c.temperature = v.GetFloat64("api.temperature")
	c.topP = v.GetFloat64("api.top_p")
	c.maxTokens = v.GetInt("api.max_tokens")
	c.user = v.GetString("api.user")
	c.progressCap = v.GetInt("stream.progress_cap")
	c.pricingFile = v.GetString("pricing.file")
	c.instructionsPath = v.GetString("instructions.path")
	c.sqlitePath = v.GetString("storage.sqlite_path")
	c.postgresDSN = v.GetString("storage.postgres_dsn")
}

func (c *analyzeCommander) run(ctx context.Context, cmd *cobra.Command) error {
	ddm := dotdir.NewManager()
	baseDir, err := ddm.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}

	closeLog, err := c.initLogger(cmd, baseDir)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := c.resolveInput(ddm); err != nil {
		return err
	}
	if abs, err := filepath.Abs(c.imagePath); err == nil {
		c.imagePath = abs
	}

	// Image and key problems are reported before anything is sent.
	if _, err := imagefile.Encode(c.imagePath); err != nil {
		return err
	}

	apiKey, err := c.apiKey()
	if err != nil {
		return err
	}

	instructionText, err := c.loadInstructions()
	if err != nil {
		return err
	}

	pricing, err := c.pricing()
	if err != nil {
		return err
	}

	driver, backend, err := history.OpenDriver(ctx, config.StorageConfig{
		SQLitePath:  c.sqlitePath,
		PostgresDSN: c.postgresDSN,
	}, baseDir)
	if err != nil {
		return err
	}
	defer driver.Close()
	c.logger.Debug("history backend", "backend", backend)

	pool, err := worker.NewPool(&worker.Config{
		Driver: driver,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("starting history worker: %w", err)
	}
	defer pool.Close()

	clientOpts := []openai.Option{openai.WithLogger(c.logger)}
	if c.recordPath != "" {
		f, err := os.OpenFile(c.recordPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening record file: %w", err)
		}
		defer f.Close()
		clientOpts = append(clientOpts, openai.WithRecorder(f))
	}

	a := &analysis{
		imagePath: c.imagePath,
		params: llm.AnalysisParams{
			Endpoint:     c.endpoint,
			APIKey:       apiKey,
			Model:        c.model,
			Temperature:  &c.temperature,
			TopP:         &c.topP,
			MaxTokens:    c.maxTokens,
			User:         c.user,
			Instructions: instructionText,
			Prompt:       c.prompt,
		},
		dotdir:    ddm,
		configDir: c.configDir,
		pool:      pool,
		logger:    c.logger,
	}

	coord, err := stream.NewCoordinator(stream.Config{
		Opener:      stream.ClientOpener(openai.NewClient(clientOpts...)),
		Pricing:     pricing,
		ProgressCap: c.progressCap,
		Logger:      c.logger,
		OnFinish:    a.finished,
	})
	if err != nil {
		return err
	}
	a.coord = coord
	defer a.stop()

	var changes <-chan struct{}
	if c.watch {
		w, err := watchFile(ctx, c.imagePath, c.logger)
		if err != nil {
			return err
		}
		defer w.Close()
		changes = w.Changes()
	}

	if c.plain {
		return runPlain(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), a, changes)
	}
	return runTUI(ctx, cmd.OutOrStdout(), a, changes)
}

// initLogger always logs JSON to sketchtable.log in the config dir. Plain
// mode also logs pretty to stderr; the terminal UI owns the screen.
func (c *analyzeCommander) initLogger(cmd *cobra.Command, baseDir string) (func(), error) {
	f, err := os.OpenFile(filepath.Join(baseDir, "sketchtable.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	fileLogger := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithSource(c.debug),
		logger.WithWriter(f),
	)

	c.logger = fileLogger
	if c.plain {
		c.logger = logger.Multi(
			logger.New(
				logger.WithDebug(c.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			),
			fileLogger,
		)
	}
	return func() { _ = f.Close() }, nil
}

// resolveInput falls back to the last analysis when no image was given.
func (c *analyzeCommander) resolveInput(ddm *dotdir.Manager) error {
	if c.imagePath != "" {
		return nil
	}

	last, err := ddm.LoadLastAnalysis(c.configDir)
	if err != nil {
		return err
	}
	if last == nil || last.ImagePath == "" {
		return errors.New("no image given and no previous analysis to repeat")
	}

	c.imagePath = last.ImagePath
	if c.prompt == "" {
		c.prompt = last.Prompt
	}
	c.logger.Info("repeating last analysis", "image", c.imagePath)
	return nil
}

func (c *analyzeCommander) apiKey() (string, error) {
	provider := strings.ToLower(strings.TrimSpace(c.provider))
	if !credentials.IsSupportedProvider(provider) {
		return "", fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	return credentials.NewKeyProvider(provider, mgr).Key()
}

func (c *analyzeCommander) loadInstructions() (string, error) {
	text, err := instructions.Load(c.instructionsPath)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, os.ErrNotExist) && !c.instructionsExplicit {
		c.logger.Warn("instruction file not found, sending no instructions", "path", c.instructionsPath)
		return "", nil
	}
	return "", err
}

func (c *analyzeCommander) pricing() (usage.Pricing, error) {
	table, err := usage.LoadPricing(c.pricingFile)
	if err != nil {
		return usage.Pricing{}, err
	}

	p, ok := usage.PricingForModel(table, c.model)
	if !ok {
		c.logger.Warn("no pricing for model, cost is reported as zero", "model", c.model)
	}
	return p, nil
}
