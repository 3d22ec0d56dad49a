package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bdougie/audioscribe/internal/config"
	"github.com/bdougie/audioscribe/internal/describer"
	"github.com/bdougie/audioscribe/internal/logging"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	configFlag      string
	backendFlag     string
	modelFlag       string
	endpointFlag    string
	timeoutFlag     time.Duration
	engineFlag      string
	voiceFlag       string
	logLevelFlag    string
	journalDirFlag  string
	databaseURLFlag string
	frameAtFlag     time.Duration
	searchLimitFlag int
	listLimitFlag   int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "audioscribe",
	Short: "Hear a spoken description of any photo",
	Long: `Audioscribe sends a photo to an image-description service and reads the
answer aloud. The last description can be replayed as often as needed.

Examples:
  audioscribe describe ./label.jpg
  audioscribe session
  audioscribe session --engine openai --voice nova
  audioscribe describe ./clip.mp4 --frame-at 3s
  audioscribe session --backend ollama --model llama3.2-vision:11b
  audioscribe check --endpoint http://gpu-box:8000/api/describe-image`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "YAML config file")
	pf.StringVar(&backendFlag, "backend", config.DefaultBackend, "Description backend: http or ollama")
	pf.StringVar(&modelFlag, "model", describer.DefaultOllamaModel, "Vision model for the ollama backend")
	pf.StringVar(&endpointFlag, "endpoint", config.DefaultEndpoint, "Image description endpoint")
	pf.DurationVar(&timeoutFlag, "timeout", config.DefaultTimeout, "Request timeout for the description service")
	pf.StringVar(&engineFlag, "engine", config.DefaultEngine, "Speech engine: auto, command, openai or none")
	pf.StringVar(&voiceFlag, "voice", config.DefaultVoice, "Voice for the openai speech engine")
	pf.StringVar(&logLevelFlag, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	pf.StringVar(&journalDirFlag, "journal-dir", "", "Directory for the JSON description journal")
	pf.StringVar(&databaseURLFlag, "database-url", "", "PostgreSQL URL for the searchable journal")
	pf.DurationVar(&frameAtFlag, "frame-at", 0, "Offset of the still taken from video files")

	rootCmd.AddCommand(describeCmd, sessionCmd, checkCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers explicitly set flags over the file and environment
// config, then validates the result once
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Service.Backend = backendFlag
	}
	if flags.Changed("model") {
		cfg.Ollama.Model = modelFlag
	}
	if flags.Changed("endpoint") {
		cfg.Service.Endpoint = endpointFlag
	}
	if flags.Changed("timeout") {
		cfg.Service.Timeout = timeoutFlag
	}
	if flags.Changed("engine") {
		cfg.Speech.Engine = engineFlag
	}
	if flags.Changed("voice") {
		cfg.Speech.Voice = voiceFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}
	if flags.Changed("journal-dir") {
		cfg.Journal.Dir = journalDirFlag
	}
	if flags.Changed("database-url") {
		cfg.Journal.DatabaseURL = databaseURLFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)
	return cfg, logger, nil
}
