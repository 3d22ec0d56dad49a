package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdougie/audioscribe/internal/embeddings"
	"github.com/bdougie/audioscribe/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// schema is applied by InitSchema. The vector size matches embeddings.Dimensions.
var schema = fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS descriptions (
            id TEXT PRIMARY KEY,
            image VARCHAR(255) NOT NULL,
            content TEXT NOT NULL,
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL
        );
    `, embeddings.Dimensions)

const indexes = `
        CREATE INDEX IF NOT EXISTS idx_descriptions_created_at ON descriptions(created_at);
        CREATE INDEX IF NOT EXISTS idx_descriptions_embedding ON descriptions USING hnsw (embedding vector_cosine_ops);
    `

// PostgresJournal stores descriptions in PostgreSQL with pgvector embeddings
type PostgresJournal struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewPostgresJournal connects to databaseURL. embedder may be nil, in which
// case records are stored without embeddings and cannot be searched.
func NewPostgresJournal(ctx context.Context, databaseURL string, embedder embeddings.Embedder, logger *slog.Logger) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresJournal{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Close closes the database connection
func (s *PostgresJournal) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// AddResult stores a description, embedding it when an embedder is available
func (s *PostgresJournal) AddResult(ctx context.Context, record models.AnalysisRecord) error {
	var vec *pgvector.Vector
	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, record.Description)
		if err != nil {
			// Keep the record, it just won't show up in searches
			s.logger.Warn("failed to generate embedding", "id", record.ID, "err", err)
		} else {
			v := pgvector.NewVector(embedding)
			vec = &v
		}
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO descriptions
        (id, image, content, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING`,
		record.ID, record.Image, record.Description, vec, createdAt)
	if err != nil {
		return fmt.Errorf("failed to store description: %w", err)
	}

	s.logger.Debug("description stored", "id", record.ID, "embedded", vec != nil)
	return nil
}

// Flush implements the Journal interface - no-op for Postgres as we save immediately
func (s *PostgresJournal) Flush() error {
	return nil
}

// SearchSimilar finds stored descriptions closest to query
func (s *PostgresJournal) SearchSimilar(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if s.embedder == nil {
		return nil, errors.New("similarity search needs an embedder")
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT image, content, created_at,
        1 - (embedding <=> $1) AS similarity
        FROM descriptions
        WHERE embedding IS NOT NULL
        ORDER BY embedding <=> $1
        LIMIT $2`,
		pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search descriptions: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SearchResult, error) {
		var r models.SearchResult
		err := row.Scan(&r.Image, &r.Description, &r.CreatedAt, &r.Similarity)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan search results: %w", err)
	}
	return results, nil
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	// Check if vector extension exists
	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for vector extension: %w", err)
	}

	if !exists {
		if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			return fmt.Errorf("failed to create vector extension: %w", err)
		}
	}

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	if _, err := conn.Exec(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
