package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/audioscribe/internal/models"
)

const batchSize = 10 // Number of records to batch write

// JournalFile is the file name FileJournal writes inside its directory
const JournalFile = "descriptions.json"

// Journal defines the interface for recording analysis results
type Journal interface {
	// AddResult adds a single analysis record
	AddResult(ctx context.Context, record models.AnalysisRecord) error

	// Flush ensures all pending records are saved
	Flush() error
}

// FileJournal batches records and appends them to a JSON file
type FileJournal struct {
	records []models.AnalysisRecord
	mu      sync.Mutex
	dir     string
	logger  *slog.Logger
}

// NewFileJournal creates a journal writing to <dir>/descriptions.json
func NewFileJournal(dir string, logger *slog.Logger) *FileJournal {
	return &FileJournal{
		dir:    dir,
		logger: logger,
	}
}

// Path returns the journal file location
func (j *FileJournal) Path() string {
	return filepath.Join(j.dir, JournalFile)
}

// AddResult adds a record to the batch and flushes if the batch is full
func (j *FileJournal) AddResult(ctx context.Context, record models.AnalysisRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, record)

	// Write to disk when batch is full
	if len(j.records) >= batchSize {
		if err := j.flush(); err != nil {
			j.logger.Error("error flushing journal", "path", j.Path(), "err", err)
			return err
		}
	}
	return nil
}

// Flush writes all pending records to disk
func (j *FileJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush()
}

func (j *FileJournal) flush() error {
	if len(j.records) == 0 {
		return nil
	}

	existing, err := readRecords(j.Path())
	if err != nil {
		return err
	}
	all := append(existing, j.records...)

	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for journal: %w", err)
	}

	// Write to a sibling file and rename so a crash never truncates the journal
	tmp, err := os.CreateTemp(j.dir, JournalFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create journal file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), j.Path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace journal: %w", err)
	}

	j.logger.Debug("journal flushed", "path", j.Path(), "records", len(j.records))
	j.records = nil // Clear the batch
	return nil
}

// ReadFileJournal returns every record saved in dir
func ReadFileJournal(dir string) ([]models.AnalysisRecord, error) {
	return readRecords(filepath.Join(dir, JournalFile))
}

func readRecords(path string) ([]models.AnalysisRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	var records []models.AnalysisRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing journal: %w", err)
	}
	return records, nil
}

// multiJournal fans records out to several journals
type multiJournal []Journal

// Multi combines journals. Every journal sees every record; errors are joined.
func Multi(journals ...Journal) Journal {
	if len(journals) == 1 {
		return journals[0]
	}
	return multiJournal(journals)
}

func (m multiJournal) AddResult(ctx context.Context, record models.AnalysisRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.AddResult(ctx, record))
	}
	return errors.Join(errs...)
}

func (m multiJournal) Flush() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Flush())
	}
	return errors.Join(errs...)
}
