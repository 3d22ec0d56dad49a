package models

import (
	"fmt"
	"time"
)

// ImageFile represents a single selected file to be described
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// DescriptionResult represents a description returned by the service
type DescriptionResult struct {
	Description string
	RequestID   string
	Duration    time.Duration
}

// StatusMessage is the transient text shown to the user
type StatusMessage struct {
	Text string
	Busy bool
}

// AnalysisRecord is one journal entry for a successful analysis
type AnalysisRecord struct {
	ID          string    `json:"id"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult is a journal entry matched by similarity
type SearchResult struct {
	Image       string
	Description string
	CreatedAt   time.Time
	Similarity  float64
}

// State is the controller's position in the upload/speak cycle
type State int

const (
	StateIdle State = iota
	StateUploading
	StateSpeaking
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateSpeaking:
		return "speaking"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
