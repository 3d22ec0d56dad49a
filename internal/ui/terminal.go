package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bdougie/audioscribe/internal/controller"
	"github.com/bdougie/audioscribe/internal/models"
)

// Compile-time interface check.
var _ controller.View = (*Terminal)(nil)

// Uploader receives selected files
type Uploader interface {
	HandleUpload(ctx context.Context, file *models.ImageFile) error
}

// Loader reads the file at path into an upload
type Loader func(ctx context.Context, path string) (*models.ImageFile, error)

// Terminal renders status lines and actions on a text stream and turns
// typed lines into file selections and action presses.
type Terminal struct {
	out    io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	actions []controller.Action
}

// NewTerminal creates a terminal view writing to out
func NewTerminal(out io.Writer, logger *slog.Logger) *Terminal {
	return &Terminal{out: out, logger: logger}
}

// SetStatus prints the status line; busy lines carry a marker
func (t *Terminal) SetStatus(msg models.StatusMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.Busy {
		fmt.Fprintf(t.out, "⏳ %s\n", msg.Text)
		return
	}
	fmt.Fprintf(t.out, "%s\n", msg.Text)
}

// ClearActions drops every offered action
func (t *Terminal) ClearActions() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = nil
}

// AddAction offers an action and prints its key
func (t *Terminal) AddAction(a controller.Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, a)
	fmt.Fprintf(t.out, "  [%s] %s\n", a.Key, a.Label)
}

// Actions returns the currently offered actions
func (t *Terminal) Actions() []controller.Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]controller.Action(nil), t.actions...)
}

func (t *Terminal) action(key string) (controller.Action, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range t.actions {
		if a.Key == key {
			return a, true
		}
	}
	return controller.Action{}, false
}

// PrintHelp shows the commands the session understands
func (t *Terminal) PrintHelp() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, "Type the path of a photo to describe it.")
	fmt.Fprintln(t.out, "Type an action key shown in [brackets] to use it, or q to quit.")
}

// Run reads lines from in until EOF, "q" or ctx is done. Each upload runs
// on its own goroutine so actions stay available while it is in flight.
func (t *Terminal) Run(ctx context.Context, in io.Reader, up Uploader, load Loader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if t.handleLine(ctx, line, up, load, &wg) {
				return nil
			}
		}
	}
}

// handleLine dispatches one typed line and reports whether to quit
func (t *Terminal) handleLine(ctx context.Context, line string, up Uploader, load Loader, wg *sync.WaitGroup) bool {
	input := strings.TrimSpace(line)
	switch strings.ToLower(input) {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	case "?", "help":
		t.PrintHelp()
		return false
	}

	if a, ok := t.action(input); ok {
		a.Run()
		return false
	}

	path := CleanPath(input)
	wg.Add(1)
	go func() {
		defer wg.Done()
		file, err := load(ctx, path)
		if err != nil {
			t.logger.Error("failed to read file", "path", path, "err", err)
			t.SetStatus(models.StatusMessage{Text: fmt.Sprintf("Could not open %s: %v", path, err)})
			return
		}
		if err := up.HandleUpload(ctx, file); err != nil {
			if errors.Is(err, controller.ErrUploadInProgress) {
				t.SetStatus(models.StatusMessage{Text: "Still analyzing the previous photo, please wait."})
				return
			}
			t.logger.Error("upload failed", "path", path, "err", err)
		}
	}()
	return false
}

// CleanPath strips the quotes terminals add on drag and drop and expands ~
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	if len(p) >= 2 {
		if (p[0] == '\'' && p[len(p)-1] == '\'') || (p[0] == '"' && p[len(p)-1] == '"') {
			p = p[1 : len(p)-1]
		}
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
