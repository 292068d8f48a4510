package store

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/tienvm/ragdoc/internal/models"
	"github.com/tienvm/ragdoc/internal/types"
)

type PgvectorConfig struct {
	ConnString string
	VectorDim  int
	BatchSize  int
}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PgvectorProvider persists indexes as pgvector tables. The location
// string is the table name; dropping the table is equivalent to a
// reset.
type PgvectorProvider struct {
	config   PgvectorConfig
	embedder embeddings.Embedder
	pool     *pgxpool.Pool
}

func NewPgvectorProvider(config PgvectorConfig, embedder embeddings.Embedder) (*PgvectorProvider, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	return &PgvectorProvider{
		config:   config,
		embedder: embedder,
		pool:     pool,
	}, nil
}

func (p *PgvectorProvider) Exists(ctx context.Context, location string) (bool, error) {
	if !tableNameRe.MatchString(location) {
		return false, fmt.Errorf("invalid table name: %s", location)
	}

	var regclass *string
	err := p.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", location).Scan(&regclass)
	if err != nil {
		return false, fmt.Errorf("failed to check table: %v", err)
	}
	return regclass != nil, nil
}

func (p *PgvectorProvider) Open(ctx context.Context, location string) (types.Index, error) {
	exists, err := p.Exists(ctx, location)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: table %s does not exist", ErrCorruptIndex, location)
	}

	// The vector column's type modifier records the dimension the
	// table was created with. A mismatch means the table was built by
	// an incompatible embedding model.
	var dim int
	err = p.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		location).Scan(&dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if dim != p.config.VectorDim {
		return nil, fmt.Errorf("%w: stored dimension %d, configured %d",
			ErrCorruptIndex, dim, p.config.VectorDim)
	}

	return &pgvectorIndex{provider: p, table: location}, nil
}

func (p *PgvectorProvider) Create(ctx context.Context, location string, chunks []models.Chunk) (types.Index, error) {
	if !tableNameRe.MatchString(location) {
		return nil, fmt.Errorf("invalid table name: %s", location)
	}

	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d)
		)`, location, p.config.VectorDim)
	if _, err := p.pool.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		location, location)
	if _, err := p.pool.Exec(ctx, createIndex); err != nil {
		return nil, fmt.Errorf("failed to create index: %v", err)
	}

	idx := &pgvectorIndex{provider: p, table: location}
	if err := idx.Insert(ctx, chunks); err != nil {
		return nil, err
	}
	return idx, nil
}

func (p *PgvectorProvider) Destroy(ctx context.Context, location string) error {
	if !tableNameRe.MatchString(location) {
		return fmt.Errorf("invalid table name: %s", location)
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", location)); err != nil {
		return fmt.Errorf("failed to drop table: %v", err)
	}
	return nil
}

func (p *PgvectorProvider) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

type pgvectorIndex struct {
	provider *PgvectorProvider
	table    string
}

func (idx *pgvectorIndex) Insert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	p := idx.provider

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)`,
		idx.table)

	// Embed in batches so one huge document does not turn into one
	// huge embedding request.
	for start := 0; start < len(chunks); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = sanitizeUTF8(c.Text)
		}

		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to create embeddings: %v", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		for i, c := range batch {
			_, err = tx.Exec(ctx, stmt,
				uuid.NewString(),
				texts[i],
				c.Metadata,
				pgvector.NewVector(vectors[i]),
			)
			if err != nil {
				return fmt.Errorf("failed to insert entry: %v", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (idx *pgvectorIndex) Search(ctx context.Context, query string, k int) ([]models.VectorEntry, error) {
	p := idx.provider

	vector, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %v", err)
	}

	if k <= 0 {
		k = 5
	}

	// seq breaks distance ties in insertion order.
	sql := fmt.Sprintf(`
		SELECT id, content, metadata, embedding
		FROM %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2`,
		idx.table)

	rows, err := p.pool.Query(ctx, sql, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %v", err)
	}
	defer rows.Close()

	var entries []models.VectorEntry
	for rows.Next() {
		var entry models.VectorEntry
		var emb pgvector.Vector
		if err := rows.Scan(&entry.ID, &entry.Content, &entry.Metadata, &emb); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		entry.Embedding = emb.Slice()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (idx *pgvectorIndex) Len(ctx context.Context) (int, error) {
	var count int
	err := idx.provider.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT count(*) FROM %s", idx.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %v", err)
	}
	return count, nil
}

func (idx *pgvectorIndex) Close() {}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
