package describer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/bdougie/audioscribe/internal/models"
)

// DefaultOllamaModel is the vision model pulled for the local backend
const DefaultOllamaModel = "llama3.2-vision:11b"

// ollamaURL is where the agent-api provider sends chat requests; it does
// not take a base URL of its own.
const ollamaURL = "http://localhost:11434"

// Ollama describes images with a local vision model through agent-api
type Ollama struct {
	provider   core.Provider
	model      string
	prompt     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	agentLog   logr.Logger
}

// NewOllama sets up the Ollama provider for model
func NewOllama(ctx context.Context, model string, timeout time.Duration, logger *slog.Logger) (*Ollama, error) {
	agentLog := logr.FromSlogHandler(logger.Handler())

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  &agentLog,
		BaseURL: "http://localhost",
		Port:    11434,
	})

	return newOllama(ctx, provider, model, timeout, logger)
}

func newOllama(ctx context.Context, provider core.Provider, model string, timeout time.Duration, logger *slog.Logger) (*Ollama, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	if err := provider.UseModel(ctx, &core.Model{ID: model}); err != nil {
		return nil, fmt.Errorf("failed to select model %s: %w", model, err)
	}
	return &Ollama{
		provider:   provider,
		model:      model,
		prompt:     DescribePrompt,
		baseURL:    ollamaURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		agentLog:   logr.FromSlogHandler(logger.Handler()),
	}, nil
}

// Endpoint names the model and where it runs
func (o *Ollama) Endpoint() string {
	return fmt.Sprintf("ollama %s at %s", o.model, o.baseURL)
}

// stopAfterReply ends a run at the first model answer, empty or not
func stopAfterReply(agg *agent.AgentRunAggregator) bool {
	last := agg.Pop()
	return last != nil && last.Role == core.AssistantMessageRole
}

// Describe asks the model about one image. A fresh agent is used per call
// so earlier images never leak into the conversation.
func (o *Ollama) Describe(ctx context.Context, file *models.ImageFile) (*models.DescriptionResult, error) {
	requestID := uuid.NewString()
	start := time.Now()

	// the provider's HTTP client has no deadline of its own
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	a, err := agent.NewAgent(
		bootstrap.WithProvider(o.provider),
		bootstrap.WithLogger(&o.agentLog),
		bootstrap.WithMaxSteps(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision agent: %w", err)
	}

	o.logger.Debug("asking local model", "file", file.Name, "model", o.model, "request_id", requestID)

	ct := file.ContentType
	if ct == "" {
		ct = ContentType(file.Name, file.Data)
	}
	response, err := a.Run(
		ctx,
		agent.WithInput(o.prompt),
		agent.WithImageBase64(base64.StdEncoding.EncodeToString(file.Data), ct),
		agent.WithStopCondition(stopAfterReply),
	)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("vision model failed: %w", err)}
	}

	reply := response.Pop()
	if reply == nil || reply.Role != core.AssistantMessageRole {
		return nil, &TransportError{Err: errors.New("no response received from model")}
	}

	elapsed := time.Since(start)
	o.logger.Debug("model answered", "request_id", requestID, "duration", elapsed)

	return &models.DescriptionResult{
		Description: strings.TrimSpace(reply.Content),
		RequestID:   requestID,
		Duration:    elapsed,
	}, nil
}

// Ping checks that the Ollama server answers
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return newServiceError(resp.StatusCode, "")
	}
	return nil
}
