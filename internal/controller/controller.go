package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/audioscribe/internal/describer"
	"github.com/bdougie/audioscribe/internal/models"
	"github.com/bdougie/audioscribe/internal/speech"
)

// Status lines shown to the user
const (
	StatusAnalyzing = "Image uploaded. Analyzing, please wait..."
	StatusPlaying   = "Analysis complete. Playing audio..."
	StatusReady     = "Ready for a new photo or follow-up action."
	StatusRepeating = "Repeating the last description..."

	failurePrefix = "Analysis failed: "
)

// Key and label of the single follow-up control
const (
	RepeatKey   = "r"
	RepeatLabel = "Read That Again"
)

// ErrUploadInProgress is returned when a file is selected while an analysis is running
var ErrUploadInProgress = errors.New("an analysis is already in progress")

// Describer turns an image into text
type Describer interface {
	Describe(ctx context.Context, file *models.ImageFile) (*models.DescriptionResult, error)
}

// Speaker plays one utterance at a time
type Speaker interface {
	Speak(text string, onComplete func()) *speech.Utterance
	Wait(ctx context.Context) error
}

// Journal records successful analyses
type Journal interface {
	AddResult(ctx context.Context, record models.AnalysisRecord) error
}

// Controller runs the upload, analyze, speak and repeat cycle
type Controller struct {
	describer Describer
	speaker   Speaker
	view      View
	journal   Journal
	logger    *slog.Logger

	mu              sync.Mutex
	state           models.State
	uploads         uint64 // bumped when an upload starts
	lastDescription string
	lastErr         error
}

// New creates a controller in the idle state
func New(d Describer, s Speaker, v View, logger *slog.Logger) *Controller {
	return &Controller{
		describer: d,
		speaker:   s,
		view:      v,
		logger:    logger,
		state:     models.StateIdle,
	}
}

// WithJournal attaches a journal that receives every successful analysis
func (c *Controller) WithJournal(j Journal) *Controller {
	c.journal = j
	return c
}

// State returns the current state
func (c *Controller) State() models.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastDescription returns the description the repeat action replays
func (c *Controller) LastDescription() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDescription
}

// LastError returns the failure of the most recent upload, or nil
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// HandleUpload analyzes file and speaks the result. A nil file is ignored.
// Analysis failures are spoken and recorded, not returned; the only error
// is ErrUploadInProgress.
func (c *Controller) HandleUpload(ctx context.Context, file *models.ImageFile) error {
	if file == nil {
		return nil
	}

	c.mu.Lock()
	if c.state == models.StateUploading {
		c.mu.Unlock()
		return ErrUploadInProgress
	}
	c.state = models.StateUploading
	c.uploads++
	c.lastErr = nil
	c.mu.Unlock()

	c.view.SetStatus(models.StatusMessage{Text: StatusAnalyzing, Busy: true})
	c.view.ClearActions()

	result, err := c.describer.Describe(ctx, file)
	if err == nil && result.Description == "" {
		err = describer.ErrEmptyDescription
	}
	if err != nil {
		c.fail(file, err)
		return nil
	}

	c.mu.Lock()
	c.lastDescription = result.Description
	c.state = models.StateSpeaking
	c.mu.Unlock()

	c.logger.Info("description received",
		"file", file.Name,
		"request_id", result.RequestID,
		"chars", len(result.Description),
	)

	c.view.SetStatus(models.StatusMessage{Text: StatusPlaying})
	c.speaker.Speak(result.Description, c.readingFinished)

	c.record(ctx, file, result)
	return nil
}

func (c *Controller) fail(file *models.ImageFile, err error) {
	msg := failurePrefix + err.Error()
	c.logger.Error("analysis failed", "file", file.Name, "err", err)

	c.mu.Lock()
	c.state = models.StateFailed
	c.lastErr = err
	hasDescription := c.lastDescription != ""
	gen := c.uploads
	c.mu.Unlock()

	c.view.SetStatus(models.StatusMessage{Text: msg})
	c.speaker.Speak(msg, func() {
		// an earlier description can still be replayed
		if hasDescription {
			c.renderRepeatAffordance(gen)
		}
	})
}

func (c *Controller) readingFinished() {
	c.mu.Lock()
	if c.state == models.StateUploading {
		// a newer upload owns the status line now
		c.mu.Unlock()
		return
	}
	c.state = models.StateReady
	gen := c.uploads
	c.mu.Unlock()

	c.view.SetStatus(models.StatusMessage{Text: StatusReady})
	c.renderRepeatAffordance(gen)
}

// superseded reports whether an upload started after upload number gen,
// or one is running now
func (c *Controller) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads != gen || c.state == models.StateUploading
}

// renderRepeatAffordance replaces the action area with the single repeat
// control, unless a newer upload owns the screen
func (c *Controller) renderRepeatAffordance(gen uint64) {
	if c.superseded(gen) {
		return
	}
	c.view.ClearActions()
	c.view.AddAction(Action{
		Key:   RepeatKey,
		Label: RepeatLabel,
		Run:   c.Repeat,
	})

	// an upload that began while we drew has no controls until it finishes
	if c.superseded(gen) {
		switch c.State() {
		case models.StateUploading, models.StateSpeaking:
			c.view.ClearActions()
		}
	}
}

// Repeat re-speaks the last description. It does nothing when there is no
// description yet or while an upload is running.
func (c *Controller) Repeat() {
	c.mu.Lock()
	if c.lastDescription == "" || c.state == models.StateUploading {
		c.mu.Unlock()
		return
	}
	text := c.lastDescription
	c.state = models.StateSpeaking
	c.mu.Unlock()

	c.view.SetStatus(models.StatusMessage{Text: StatusRepeating})
	c.speaker.Speak(text, c.readingFinished)
}

// Wait blocks until the current utterance, and its follow-up, is done
func (c *Controller) Wait(ctx context.Context) error {
	return c.speaker.Wait(ctx)
}

func (c *Controller) record(ctx context.Context, file *models.ImageFile, result *models.DescriptionResult) {
	if c.journal == nil {
		return
	}
	rec := models.AnalysisRecord{
		ID:          uuid.NewString(),
		Image:       file.Name,
		Description: result.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if result.RequestID != "" {
		rec.ID = result.RequestID
	}
	if err := c.journal.AddResult(ctx, rec); err != nil {
		c.logger.Warn("failed to journal description", "file", file.Name, "err", err)
	}
}
