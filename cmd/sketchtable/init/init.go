// Package initcmder provides the init command for initializing a local
// .sketchtable directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/sketchtable/pkg/cliui"
	"github.com/papercomputeco/sketchtable/pkg/config"
)

const (
	dirName = ".sketchtable"

	remoteFetchTimeout = 15 * time.Second
	maxRemoteConfig    = 1 << 20
)

const initLongDesc string = `Initialize a new .sketchtable/ directory in the current working directory.

Creates a local .sketchtable/ directory that takes precedence over the default
~/.sketchtable/ directory for configuration, credentials, history and the
last-analysis state. A config.toml with default values is written when none
exists.

Use --preset to start from an endpoint preset (openai, ollama, lmstudio) or
from a config.toml fetched over HTTP. A preset overwrites an existing
config.toml.

Examples:
  sketchtable init
  sketchtable init --preset ollama
  sketchtable init --preset https://example.com/team/config.toml`

const initShortDesc string = "Initialize a local .sketchtable/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(ctx context.Context, out io.Writer, preset string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	// Resolve the preset before touching the filesystem so a bad preset
	// leaves nothing behind.
	var cfg *config.Config
	if preset != "" {
		cfg, err = resolvePreset(ctx, out, preset)
		if err != nil {
			return err
		}
	}

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .sketchtable directory: %w", err)
		}
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, statErr := os.Stat(cfger.GetTarget())
	configExists := statErr == nil

	switch {
	case cfg != nil:
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	case !configExists:
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
	}

	if existed {
		fmt.Fprintf(out, "  %s Already initialized: %s\n", cliui.SuccessMark, dir)
	} else {
		fmt.Fprintf(out, "  %s Initialized .sketchtable directory: %s\n", cliui.SuccessMark, dir)
	}
	if cfg != nil {
		fmt.Fprintf(out, "  %s Wrote %s preset to %s\n",
			cliui.SuccessMark, cliui.NameStyle.Render(preset), cliui.DimStyle.Render(cfger.GetTarget()))
	}

	return nil
}

func resolvePreset(ctx context.Context, out io.Writer, preset string) (*config.Config, error) {
	if strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://") {
		var cfg *config.Config
		err := cliui.Step(out, "Fetching config preset", func() error {
			var err error
			cfg, err = fetchRemoteConfig(ctx, preset)
			return err
		})
		return cfg, err
	}
	return config.PresetConfig(preset)
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteConfig))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("fetching remote config: empty body")
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing remote config: %w", err)
	}

	return cfg, nil
}
