package describer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/audioscribe/internal/models"
)

// FieldName is the multipart field the service reads the image from
const FieldName = "file"

// maxResponseBytes caps how much of a response body we are willing to read
const maxResponseBytes = 1 << 20

// Client talks to the image description service
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given endpoint URL
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Endpoint returns the configured service URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

type describeResponse struct {
	Description any `json:"description"`
}

// Describe uploads the image and returns the service's description.
// An empty description is not an error here; the caller decides.
func (c *Client) Describe(ctx context.Context, file *models.ImageFile) (*models.DescriptionResult, error) {
	body, contentType, err := buildBody(file)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	c.logger.Debug("uploading image",
		"request_id", requestID,
		"file", file.Name,
		"bytes", len(file.Data),
		"endpoint", c.endpoint,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("description request failed", "request_id", requestID, "err", err)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	elapsed := time.Since(start)
	c.logger.Info("description service answered",
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", elapsed,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newServiceError(resp.StatusCode, errorDetail(data))
	}

	var decoded describeResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("invalid response from server: %w", err)}
	}

	description, _ := decoded.Description.(string)
	return &models.DescriptionResult{
		Description: description,
		RequestID:   requestID,
		Duration:    elapsed,
	}, nil
}

// Ping checks that the service root answers
func (c *Client) Ping(ctx context.Context) error {
	root, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.endpoint, err)
	}
	root.Path = "/"
	root.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= 500 {
		return newServiceError(resp.StatusCode, "")
	}
	return nil
}

func buildBody(file *models.ImageFile) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	ct := file.ContentType
	if ct == "" {
		ct = ContentType(file.Name, file.Data)
	}

	name := file.Name
	if name == "" {
		name = "image"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, escapeQuotes(name)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// errorDetail pulls the detail field out of an error body. A body that is
// not JSON yields the generic message; JSON without a usable detail yields
// "" so the caller falls back to the status code.
func errorDetail(data []byte) string {
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return unknownServerError
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	switch d := obj["detail"].(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		// FastAPI validation errors carry a list here
		raw, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
