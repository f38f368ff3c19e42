package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"
	"github.com/tieubaoca/citebot/types"
	"go.uber.org/zap"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// pgxPool is the part of *pgxpool.Pool the store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// PgVectorStore keeps chunks in a Postgres table with a pgvector column.
// Embeddings are computed by the configured Embedder.
type PgVectorStore struct {
	pool       pgxPool
	table      string
	dimensions int
	embedder   Embedder
}

func NewPgVectorStore(ctx context.Context, databaseURL, table string, dimensions int, embedder Embedder) (*PgVectorStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", dimensions)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "unable to connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "unable to ping database")
	}

	s, err := newPgVectorStore(ctx, pool, table, dimensions, embedder)
	if err != nil {
		pool.Close()
		return nil, err
	}
	zap.L().Info("pgvector: connected", zap.String("table", table))
	return s, nil
}

func newPgVectorStore(ctx context.Context, pool pgxPool, table string, dimensions int, embedder Embedder) (*PgVectorStore, error) {
	s := &PgVectorStore{pool: pool, table: table, dimensions: dimensions, embedder: embedder}
	if err := s.createSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) createSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	content TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	custom JSONB NOT NULL DEFAULT '{}',
	created_at BIGINT NOT NULL,
	embedding vector(%d) NOT NULL
)`, s.table, s.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "failed to create pgvector schema")
		}
	}
	return nil
}

func (s *PgVectorStore) ReInit(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)); err != nil {
		return eris.Wrap(err, "failed to drop table")
	}
	return s.createSchema(ctx)
}

// InsertDocuments embeds each document and inserts all of them in one batch.
func (s *PgVectorStore) InsertDocuments(ctx context.Context, docs []types.Document) error {
	batch := &pgx.Batch{}
	query := fmt.Sprintf(
		"INSERT INTO %s (content, title, source, tags, custom, created_at, embedding) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		s.table)
	for _, doc := range docs {
		embedding, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return eris.Wrap(err, "failed to embed document")
		}
		custom, err := json.Marshal(nonNilMap(doc.Metadata.Custom))
		if err != nil {
			return err
		}
		createdAt := doc.CreatedAt
		if createdAt == 0 {
			createdAt = time.Now().Unix()
		}
		tags := doc.Metadata.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(query, doc.Content, doc.Metadata.Title, doc.Metadata.Source, tags, custom, createdAt, pgvector.NewVector(embedding))
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return eris.Wrap(err, "failed to insert documents")
	}
	return nil
}

// SearchSimilar orders rows by L2 distance to the query embedding.
func (s *PgVectorStore) SearchSimilar(ctx context.Context, query string, limit int) ([]types.Document, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "failed to embed query")
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT id, content, title, source, tags, custom, created_at, embedding <-> $1 AS distance FROM %s ORDER BY distance LIMIT $2",
		s.table), pgvector.NewVector(embedding), searchLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "query failed")
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var (
			id       int64
			doc      types.Document
			custom   []byte
			distance float64
		)
		if err := rows.Scan(&id, &doc.Content, &doc.Metadata.Title, &doc.Metadata.Source,
			&doc.Metadata.Tags, &custom, &doc.CreatedAt, &distance); err != nil {
			return nil, err
		}
		doc.ID = strconv.FormatInt(id, 10)
		doc.Metadata.Custom = map[string]string{}
		if len(custom) > 0 {
			if err := json.Unmarshal(custom, &doc.Metadata.Custom); err != nil {
				return nil, eris.Wrap(err, "invalid custom metadata")
			}
		}
		doc.Metadata.Custom["distance"] = fmt.Sprintf("%f", distance)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PgVectorStore) Close() {
	s.pool.Close()
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
