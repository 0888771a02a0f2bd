package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/sql-governor/pkg/config"
	"github.com/nsxbet/sql-governor/pkg/governor"
	"github.com/nsxbet/sql-governor/pkg/logger"
	"github.com/nsxbet/sql-governor/pkg/types"
)

var cfgFile string

// elapsedPrecision rounds durations for display.
const elapsedPrecision = time.Millisecond

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sql-governor",
	Short: "Review, execute and audit SQL on managed MySQL connections",
	Long: `sql-governor is a governance layer for SQL changes. It validates
statements against the live engine and its schema before anything runs,
executes batches as single transactions that roll back on first failure,
advises on the locking cost of ALTER statements, and keeps a versioned,
auditable history of every schema change it applies.

Connections are declared in the config file. Passwords are read from the
environment variables the config names and never touch disk.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sql-governor.yaml, then $HOME/.sql-governor.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// initConfig reads in ENV variables and sets the log level before any
// command runs.
func initConfig() {
	viper.SetEnvPrefix("SQL_GOVERNOR")
	viper.AutomaticEnv() // read in environment variables that match

	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelInfo
	}
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(logger.NewWithLevel(level).GetSlogLogger())
}

// loadEngineConfig resolves the governor configuration: the --config flag
// wins, then ./sql-governor.yaml, then $HOME/.sql-governor.yaml, then the
// built-in defaults with no connections.
func loadEngineConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}

	candidates := []string{"sql-governor.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".sql-governor.yaml"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return config.LoadFromFile(candidate)
		}
	}
	return config.DefaultConfig(), nil
}

// withGovernor builds a Governor from the resolved config, runs fn with a
// signal-aware context, and closes the governor afterwards. Ctrl-C cancels
// the context and in-flight batches roll back.
func withGovernor(fn func(ctx context.Context, g *governor.Governor) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	g, err := governor.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := g.Close(); cerr != nil {
			slog.Warn("failed to close governor cleanly", "error", cerr)
		}
	}()

	return fn(ctx, g)
}

// readSQLInput returns the SQL text for a command: the --sql flag, the
// positional file argument, or stdin when the argument is "-".
func readSQLInput(cmd *cobra.Command, args []string) (string, error) {
	inline, _ := cmd.Flags().GetString("sql")
	if inline != "" && len(args) > 0 {
		return "", errors.New("provide SQL either as a file argument or with --sql, not both")
	}
	if inline != "" {
		return inline, nil
	}
	if len(args) == 0 {
		return "", errors.New("no SQL given: pass a file path, -, or --sql")
	}
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errors.Wrap(err, "failed to read SQL from stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", errors.Wrapf(err, "failed to read SQL file: %s", args[0])
	}
	return string(data), nil
}

// output renders value in the format selected by --output. The text
// callback handles the human-readable form; json and yaml encode the value
// directly.
func output(value any, text func() error) error {
	switch format := viper.GetString("output"); format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(value)
	case "text":
		return text()
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}

// formatPosition renders " (line L, column C)" or "" for a nil position.
func formatPosition(pos *types.Position) string {
	if pos == nil {
		return ""
	}
	return fmt.Sprintf(" (line %d, column %d)", pos.Line, pos.Column)
}

// firstLine collapses a statement to a single display line.
func firstLine(text string) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx]) + " ..."
	}
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return line
}

// shortID abbreviates a batch UUID for single-line listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
