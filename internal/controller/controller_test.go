package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/audioscribe/internal/describer"
	"github.com/bdougie/audioscribe/internal/logging"
	"github.com/bdougie/audioscribe/internal/models"
	"github.com/bdougie/audioscribe/internal/speech"
)

// recordingView keeps every status and the current action set
type recordingView struct {
	mu       sync.Mutex
	statuses []models.StatusMessage
	actions  []Action
}

func (v *recordingView) SetStatus(msg models.StatusMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, msg)
}

func (v *recordingView) ClearActions() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.actions = nil
}

func (v *recordingView) AddAction(a Action) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.actions = append(v.actions, a)
}

func (v *recordingView) lastStatus() models.StatusMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.statuses) == 0 {
		return models.StatusMessage{}
	}
	return v.statuses[len(v.statuses)-1]
}

func (v *recordingView) currentActions() []Action {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Action(nil), v.actions...)
}

// recordingEngine records what it was asked to say. When gated, each Say
// waits until releaseLast or cancellation.
type recordingEngine struct {
	mu      sync.Mutex
	spoken  []string
	gated   bool
	gates   []chan struct{}
	started chan string
}

func newRecordingEngine(gated bool) *recordingEngine {
	return &recordingEngine{
		gated:   gated,
		started: make(chan string, 16),
	}
}

func (e *recordingEngine) Name() string { return "recording" }

func (e *recordingEngine) Say(ctx context.Context, text string) error {
	gate := make(chan struct{})
	e.mu.Lock()
	e.spoken = append(e.spoken, text)
	e.gates = append(e.gates, gate)
	e.mu.Unlock()
	e.started <- text

	if !e.gated {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseLast lets the most recent utterance finish
func (e *recordingEngine) releaseLast() {
	e.mu.Lock()
	defer e.mu.Unlock()
	close(e.gates[len(e.gates)-1])
}

func (e *recordingEngine) said() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

type stubDescriber struct {
	result *models.DescriptionResult
	err    error
	onCall func()
}

func (s *stubDescriber) Describe(ctx context.Context, file *models.ImageFile) (*models.DescriptionResult, error) {
	if s.onCall != nil {
		s.onCall()
	}
	return s.result, s.err
}

type memoryJournal struct {
	records []models.AnalysisRecord
}

func (j *memoryJournal) AddResult(ctx context.Context, rec models.AnalysisRecord) error {
	j.records = append(j.records, rec)
	return nil
}

var testImage = &models.ImageFile{Name: "photo.jpg", Data: []byte("jpeg")}

func waitSettled(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

// serviceController wires a real describer client to an httptest server
func serviceController(t *testing.T, handler http.HandlerFunc, engine speech.Engine) (*Controller, *recordingView) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logging.Discard()
	view := &recordingView{}
	client := describer.NewClient(srv.URL+"/api/describe-image", 5*time.Second, logger)
	return New(client, speech.NewSpeaker(engine, logger), view, logger), view
}

func TestScenarioSuccessfulDescription(t *testing.T) {
	engine := newRecordingEngine(false)
	c, view := serviceController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"description": "a red apple on a table"}`))
	}, engine)
	journal := &memoryJournal{}
	c.WithJournal(journal)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	assert.Equal(t, []string{"a red apple on a table"}, engine.said())
	assert.Equal(t, "a red apple on a table", c.LastDescription())
	assert.Equal(t, models.StateReady, c.State())
	assert.Equal(t, StatusReady, view.lastStatus().Text)
	assert.False(t, view.lastStatus().Busy)
	assert.NoError(t, c.LastError())

	actions := view.currentActions()
	require.Len(t, actions, 1)
	assert.Equal(t, RepeatKey, actions[0].Key)
	assert.Equal(t, RepeatLabel, actions[0].Label)

	require.Len(t, journal.records, 1)
	assert.Equal(t, "photo.jpg", journal.records[0].Image)
	assert.Equal(t, "a red apple on a table", journal.records[0].Description)
}

func TestScenarioServerError(t *testing.T) {
	engine := newRecordingEngine(false)
	c, view := serviceController(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "model overloaded"}`))
	}, engine)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	assert.Equal(t, []string{"Analysis failed: model overloaded"}, engine.said())
	assert.Equal(t, "Analysis failed: model overloaded", view.lastStatus().Text)
	assert.Equal(t, models.StateFailed, c.State())
	assert.Empty(t, c.LastDescription())
	assert.Empty(t, view.currentActions())

	var svcErr *describer.ServiceError
	assert.True(t, errors.As(c.LastError(), &svcErr))
}

func TestScenarioEmptyDescription(t *testing.T) {
	engine := newRecordingEngine(false)
	c, _ := serviceController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"description": ""}`))
	}, engine)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	assert.Equal(t, []string{"Analysis failed: Received an empty description from the server."}, engine.said())
	assert.ErrorIs(t, c.LastError(), describer.ErrEmptyDescription)
	assert.Equal(t, models.StateFailed, c.State())
}

func TestEmptyDescriptionKeepsPreviousOne(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &recordingView{}
	d := &stubDescriber{result: &models.DescriptionResult{Description: "a blue mug"}}
	c := New(d, speech.NewSpeaker(engine, logger), view, logger)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	d.result = &models.DescriptionResult{Description: ""}
	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	assert.Equal(t, "a blue mug", c.LastDescription())
	// the earlier description can still be replayed
	actions := view.currentActions()
	require.Len(t, actions, 1)
	assert.Equal(t, RepeatKey, actions[0].Key)
}

func TestTransportFailureIsSpoken(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &recordingView{}
	d := &stubDescriber{err: &describer.TransportError{Err: errors.New("connection refused")}}
	c := New(d, speech.NewSpeaker(engine, logger), view, logger)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	assert.Equal(t, []string{"Analysis failed: connection refused"}, engine.said())
}

func TestBusyStatusBeforeResponse(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &recordingView{}
	var seen models.StatusMessage
	d := &stubDescriber{
		result: &models.DescriptionResult{Description: "text"},
		onCall: func() { seen = view.lastStatus() },
	}
	c := New(d, speech.NewSpeaker(engine, logger), view, logger)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	assert.Equal(t, StatusAnalyzing, seen.Text)
	assert.True(t, seen.Busy)
}

func TestNilFileIsIgnored(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &recordingView{}
	c := New(&stubDescriber{}, speech.NewSpeaker(engine, logger), view, logger)

	require.NoError(t, c.HandleUpload(context.Background(), nil))
	assert.Equal(t, models.StateIdle, c.State())
	assert.Empty(t, view.statuses)
	assert.Empty(t, engine.said())
}

func TestSecondUploadRejectedWhileAnalyzing(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &recordingView{}

	entered := make(chan struct{})
	unblock := make(chan struct{})
	d := &stubDescriber{
		result: &models.DescriptionResult{Description: "first"},
		onCall: func() {
			close(entered)
			<-unblock
		},
	}
	c := New(d, speech.NewSpeaker(engine, logger), view, logger)

	done := make(chan error, 1)
	go func() { done <- c.HandleUpload(context.Background(), testImage) }()
	<-entered

	assert.Equal(t, models.StateUploading, c.State())
	assert.ErrorIs(t, c.HandleUpload(context.Background(), testImage), ErrUploadInProgress)

	close(unblock)
	require.NoError(t, <-done)
	waitSettled(t, c)
	assert.Equal(t, []string{"first"}, engine.said())
}

// hookView runs onStatus after recording each status
type hookView struct {
	recordingView
	onStatus func(models.StatusMessage)
}

func (v *hookView) SetStatus(msg models.StatusMessage) {
	v.recordingView.SetStatus(msg)
	if v.onStatus != nil {
		v.onStatus(msg)
	}
}

func TestUploadDuringReadyRenderHidesRepeat(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &hookView{}
	d := &stubDescriber{result: &models.DescriptionResult{Description: "first"}}
	c := New(d, speech.NewSpeaker(engine, logger), view, logger)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	var once sync.Once
	view.onStatus = func(msg models.StatusMessage) {
		if msg.Text != StatusReady {
			return
		}
		// a new photo arrives between the ready status and the controls
		once.Do(func() {
			d.result = &models.DescriptionResult{Description: "second"}
			d.onCall = func() {
				close(entered)
				<-release
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, c.HandleUpload(context.Background(), testImage))
			}()
			<-entered
		})
	}

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	assert.Equal(t, models.StateUploading, c.State())
	assert.Empty(t, view.currentActions(), "no repeat control while analyzing")
	assert.Equal(t, StatusAnalyzing, view.lastStatus().Text)

	close(release)
	wg.Wait()
	waitSettled(t, c)

	assert.Equal(t, models.StateReady, c.State())
	assert.Len(t, view.currentActions(), 1)
	assert.Equal(t, []string{"first", "second"}, engine.said())
}

func TestRepeatWithoutDescriptionIsNoop(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &recordingView{}
	c := New(&stubDescriber{}, speech.NewSpeaker(engine, logger), view, logger)

	c.Repeat()
	waitSettled(t, c)

	assert.Empty(t, engine.said())
	assert.Empty(t, view.statuses)
}

func TestRepeatReplaysExactDescription(t *testing.T) {
	engine := newRecordingEngine(false)
	logger := logging.Discard()
	view := &recordingView{}
	d := &stubDescriber{result: &models.DescriptionResult{Description: "  Vitamin C, 500 tablets.\n"}}
	c := New(d, speech.NewSpeaker(engine, logger), view, logger)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	waitSettled(t, c)

	for i := 0; i < 3; i++ {
		actions := view.currentActions()
		require.Len(t, actions, 1)
		actions[0].Run()
		waitSettled(t, c)
	}

	said := engine.said()
	require.Len(t, said, 4)
	for _, s := range said {
		assert.Equal(t, "  Vitamin C, 500 tablets.\n", s)
	}
	assert.Equal(t, StatusReady, view.lastStatus().Text)
	assert.Equal(t, models.StateReady, c.State())
}

func TestScenarioRapidRepeat(t *testing.T) {
	engine := newRecordingEngine(true)
	logger := logging.Discard()
	view := &recordingView{}
	d := &stubDescriber{result: &models.DescriptionResult{Description: "a red apple on a table"}}
	c := New(d, speech.NewSpeaker(engine, logger), view, logger)

	require.NoError(t, c.HandleUpload(context.Background(), testImage))
	<-engine.started
	engine.releaseLast()
	waitSettled(t, c)

	var readyCount int
	countReady := func() int {
		view.mu.Lock()
		defer view.mu.Unlock()
		n := 0
		for _, s := range view.statuses {
			if s.Text == StatusReady {
				n++
			}
		}
		return n
	}
	readyCount = countReady()

	c.Repeat()
	<-engine.started
	c.Repeat()
	<-engine.started

	assert.Equal(t, StatusRepeating, view.lastStatus().Text)
	engine.releaseLast()
	waitSettled(t, c)

	// only the second repeat's completion handler ran
	assert.Equal(t, readyCount+1, countReady())
	assert.Equal(t, StatusReady, view.lastStatus().Text)
	assert.Len(t, engine.said(), 3)
}
