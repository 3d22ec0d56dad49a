package speech

import (
	"fmt"
	"log/slog"

	"github.com/bdougie/audioscribe/internal/config"
)

// NewEngine picks the engine named by cfg.Speech.Engine. "auto" prefers a
// local synthesizer, then OpenAI when a key is configured, then silence.
func NewEngine(cfg *config.Config, logger *slog.Logger) (Engine, error) {
	switch cfg.Speech.Engine {
	case "none":
		return NewNoOpEngine(logger), nil
	case "command":
		return NewCommandEngine(cfg.Speech.Command)
	case "openai":
		return NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Speech.Voice, cfg.Speech.Player)
	case "auto", "":
		cmdEngine, err := NewCommandEngine(cfg.Speech.Command)
		if err == nil {
			return cmdEngine, nil
		}
		logger.Debug("no local synthesizer", "err", err)

		if cfg.OpenAI.APIKey != "" {
			aiEngine, err := NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Speech.Voice, cfg.Speech.Player)
			if err == nil {
				return aiEngine, nil
			}
			logger.Debug("openai speech unavailable", "err", err)
		}
		logger.Warn("no speech engine available, descriptions will not be spoken")
		return NewNoOpEngine(logger), nil
	default:
		return nil, fmt.Errorf("unknown speech engine %q", cfg.Speech.Engine)
	}
}
