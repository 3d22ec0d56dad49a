package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueFull is returned when the work queue cannot take more requests
var ErrQueueFull = errors.New("embedding queue is full, try again later")

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result represents the result of embedding generation
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

// Work represents a unit of embedding work
type Work struct {
	ctx     context.Context
	Content string
	Result  chan<- Result
}

// Service manages embedding generation and caching
type Service struct {
	embedder   Embedder
	numWorkers int
	workQueue  chan Work
	cache      sync.Map // content -> []float32
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewService creates a new embedding service with the specified number of workers
func NewService(embedder Embedder, numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = 4 // Default to 4 workers if not specified
	}

	service := &Service{
		embedder:   embedder,
		numWorkers: numWorkers,
		workQueue:  make(chan Work, 100),
	}

	service.startWorkers()

	return service
}

// startWorkers starts a pool of goroutines for generating embeddings
func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				work.Result <- s.embed(work.ctx, work.Content)
				close(work.Result)
			}
		}()
	}
}

func (s *Service) embed(ctx context.Context, content string) Result {
	if cached, ok := s.cache.Load(content); ok {
		return Result{Content: content, Embedding: cached.([]float32)}
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return Result{Content: content, Error: fmt.Errorf("failed to generate embedding: %w", err)}
	}
	s.cache.Store(content, embedding)
	return Result{Content: content, Embedding: embedding}
}

// GetEmbedding requests an embedding generation asynchronously
func (s *Service) GetEmbedding(ctx context.Context, content string) <-chan Result {
	resultChan := make(chan Result, 1)

	select {
	case s.workQueue <- Work{ctx: ctx, Content: content, Result: resultChan}:
	default:
		resultChan <- Result{Content: content, Error: ErrQueueFull}
		close(resultChan)
	}

	return resultChan
}

// Embed is the blocking form of GetEmbedding
func (s *Service) Embed(ctx context.Context, content string) ([]float32, error) {
	select {
	case res := <-s.GetEmbedding(ctx, content):
		return res.Embedding, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down the embedding service and waits for all workers to finish
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.workQueue)
	})
	s.wg.Wait()
}
