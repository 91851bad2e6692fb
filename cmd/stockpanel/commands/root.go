package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dyluth/stockpanel/internal/config"
	"github.com/dyluth/stockpanel/internal/printer"
)

// DefaultConfigPath is read when --config is not given. A missing default
// file is not an error: built-in defaults apply.
const DefaultConfigPath = "stockpanel.yml"

var versionString = "dev"

// app holds what the persistent flags resolve to for one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree. Every call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stockpanel",
		Short: "Stock panel - chat-driven farm and production stock tracking",
		Long: `stockpanel runs the bot core behind a chat stock panel: owners register
farm items and production, attach proofs, and managers review logs and adjust
stock behind a shared key.

The chat platform gateway talks to the bot over Redis pub/sub; stock and
transactions live in Redis, SQLite or Postgres.`,
		Version: versionString,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		// Unknown flags on the root are an error, not silently ignored
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", DefaultConfigPath, "Path to stockpanel.yml")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newSeedCmd(a),
		newTxCmd(a),
		newStockCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	logConfig := zap.NewProductionConfig()
	if a.verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": a.configPath},
			[]string{"Fix the file, or run without --config to use the defaults"},
		)
	}
	a.cfg = cfg
	return nil
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Parse([]byte(`version: "1.0"`), os.LookupEnv)
	}
	return nil, err
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
