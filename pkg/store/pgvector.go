package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore keeps chunk records in PostgreSQL and searches them by cosine
// distance with pgvector.
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
	table    string
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder types.Embedder) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
		table:    pgx.Identifier{config.TableName}.Sanitize(),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			page INTEGER NOT NULL,
			chunk_id INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, vs.table, vs.config.VectorDim)
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(), vs.table)
	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Index embeds chunks and replaces every record of source in one transaction.
func (vs *VectorStore) Index(ctx context.Context, chunks []models.Chunk, source string) (int, error) {
	records, err := buildRecords(ctx, vs.embedder, chunks, source, vs.config.VectorDim)
	if err != nil {
		return 0, err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE source = $1", vs.table), source); err != nil {
		return 0, fmt.Errorf("failed to clear previous records: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, page, chunk_id, chunk_size, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, vs.table)

	for start := 0; start < len(records); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(records) {
			end = len(records)
		}

		batch := &pgx.Batch{}
		for _, r := range records[start:end] {
			batch.Queue(stmt,
				fmt.Sprintf("%s_%d", r.Source, r.ChunkID),
				r.Source,
				r.Page,
				r.ChunkID,
				r.ChunkSize,
				r.Text,
				pgvector.NewVector(r.Embedding),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("failed to insert records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(records), nil
}

// Search returns up to topK records whose cosine distance to the query is at
// most maxDistance.
func (vs *VectorStore) Search(ctx context.Context, query string, topK int, maxDistance float64) ([]models.Candidate, error) {
	vector, err := embedQuery(ctx, vs.embedder, query)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT content, source, page, chunk_id, distance
		FROM (
			SELECT content, source, page, chunk_id, embedding <=> $1 AS distance
			FROM %s
		) hits
		WHERE distance <= $2
		ORDER BY distance
		LIMIT $3`, vs.table)

	rows, err := vs.pool.Query(ctx, sql, pgvector.NewVector(vector), maxDistance, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.Text, &c.Metadata.Source, &c.Metadata.Page, &c.Metadata.ChunkID, &c.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return candidates, nil
}

func (vs *VectorStore) Ping(ctx context.Context) error {
	return vs.pool.Ping(ctx)
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
