package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the reference deployment
const (
	DefaultBackend  = "http"
	DefaultEndpoint = "http://127.0.0.1:8000/api/describe-image"
	DefaultTimeout  = 60 * time.Second
	DefaultEngine   = "auto"
	DefaultVoice    = "alloy"
	DefaultPlayer   = "ffplay -nodisp -autoexit -loglevel quiet"
	DefaultLogLevel = "info"
)

// Config holds everything the client needs to run
type Config struct {
	Service struct {
		Backend  string        `yaml:"backend"` // http or ollama
		Endpoint string        `yaml:"endpoint"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"service"`

	Speech struct {
		Engine  string `yaml:"engine"`  // auto, command, openai or none
		Command string `yaml:"command"` // synthesizer binary for the command engine
		Voice   string `yaml:"voice"`
		Player  string `yaml:"player"`
	} `yaml:"speech"`

	Ollama struct {
		Model string `yaml:"model"`
	} `yaml:"ollama"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"openai"`

	Journal struct {
		Dir         string `yaml:"dir"`
		DatabaseURL string `yaml:"databaseURL"`
	} `yaml:"journal"`

	LogLevel string `yaml:"logLevel"`
}

// Default returns a config populated with the built-in defaults
func Default() *Config {
	cfg := &Config{}
	cfg.Service.Backend = DefaultBackend
	cfg.Service.Endpoint = DefaultEndpoint
	cfg.Service.Timeout = DefaultTimeout
	cfg.Speech.Engine = DefaultEngine
	cfg.Speech.Voice = DefaultVoice
	cfg.Speech.Player = DefaultPlayer
	cfg.LogLevel = DefaultLogLevel
	return cfg
}

// Load builds a config from defaults, an optional YAML file, a .env file
// in the working directory and AUDIOSCRIBE_* environment variables, in
// that order of precedence. The result is not validated so callers can
// layer flags on top first; call Validate once everything is applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Service.Backend, "AUDIOSCRIBE_BACKEND")
	setString(&c.Service.Endpoint, "AUDIOSCRIBE_ENDPOINT")
	setString(&c.Ollama.Model, "AUDIOSCRIBE_OLLAMA_MODEL")
	setString(&c.Speech.Engine, "AUDIOSCRIBE_SPEECH_ENGINE")
	setString(&c.Speech.Command, "AUDIOSCRIBE_SPEECH_COMMAND")
	setString(&c.Speech.Voice, "AUDIOSCRIBE_VOICE")
	setString(&c.Speech.Player, "AUDIOSCRIBE_PLAYER")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Journal.Dir, "AUDIOSCRIBE_JOURNAL_DIR")
	setString(&c.Journal.DatabaseURL, "AUDIOSCRIBE_DATABASE_URL")
	setString(&c.LogLevel, "AUDIOSCRIBE_LOG_LEVEL")

	if v := os.Getenv("AUDIOSCRIBE_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUDIOSCRIBE_TIMEOUT %q: %w", v, err)
		}
		c.Service.Timeout = d
	}
	return nil
}

// Validate checks the values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Service.Backend {
	case "http", "ollama":
	default:
		return fmt.Errorf("unknown backend %q (want http or ollama)", c.Service.Backend)
	}
	if c.Service.Backend == "http" && c.Service.Endpoint == "" {
		return errors.New("service endpoint is required")
	}
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service timeout must be positive, got %s", c.Service.Timeout)
	}
	switch c.Speech.Engine {
	case "auto", "command", "openai", "none":
	default:
		return fmt.Errorf("unknown speech engine %q (want auto, command, openai or none)", c.Speech.Engine)
	}
	if c.Speech.Engine == "openai" && c.OpenAI.APIKey == "" {
		return errors.New("speech engine openai requires OPENAI_API_KEY")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90")
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
