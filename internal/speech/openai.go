package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type speechCreator interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIEngine synthesizes speech with the OpenAI audio API and plays the
// resulting file through a local player such as ffplay.
type OpenAIEngine struct {
	client speechCreator
	voice  openai.SpeechVoice
	model  openai.SpeechModel
	player []string

	play func(ctx context.Context, path string) error
}

// NewOpenAIEngine creates an engine using apiKey. baseURL may be empty.
// player is a command line; the audio file path is appended to it.
func NewOpenAIEngine(apiKey, baseURL, voice, player string) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	playerFields := strings.Fields(player)
	if len(playerFields) == 0 {
		return nil, errors.New("an audio player command is required for OpenAI speech")
	}
	if _, err := exec.LookPath(playerFields[0]); err != nil {
		return nil, fmt.Errorf("audio player '%s' not found: %w", playerFields[0], err)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	e := &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		voice:  openai.SpeechVoice(voice),
		model:  openai.TTSModel1,
		player: playerFields,
	}
	e.play = e.runPlayer
	return e, nil
}

// Name identifies the engine in logs
func (e *OpenAIEngine) Name() string {
	return "openai:" + string(e.voice)
}

// Say synthesizes text to a temp mp3 and plays it
func (e *OpenAIEngine) Say(ctx context.Context, text string) error {
	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          e.model,
		Input:          text,
		Voice:          e.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("tts failed: %w", err)
	}
	defer resp.Close()

	out, err := os.CreateTemp("", "audioscribe-*.mp3")
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	defer os.Remove(out.Name())

	if _, err := io.Copy(out, resp); err != nil {
		out.Close()
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	return e.play(ctx, out.Name())
}

func (e *OpenAIEngine) runPlayer(ctx context.Context, path string) error {
	args := append(append([]string{}, e.player[1:]...), path)
	cmd := exec.CommandContext(ctx, e.player[0], args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %v\nOutput: %s", e.player[0], err, stderr.String())
	}
	return nil
}
