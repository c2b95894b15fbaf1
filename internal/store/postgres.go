package store

import (
	"context"
	"errors"

	"github.com/AaronLay10/SentientStudio/internal/storage/postgres"
)

// PostgresBackend stores documents in the JSONB documents table.
type PostgresBackend struct {
	c *postgres.Client
}

func NewPostgresBackend(c *postgres.Client) *PostgresBackend {
	return &PostgresBackend{c: c}
}

// NewPostgres returns a store over c.
func NewPostgres(c *postgres.Client) *Store {
	return New(NewPostgresBackend(c))
}

func notFound(err error) error {
	if errors.Is(err, postgres.ErrNoDocument) {
		return ErrNotFound
	}
	return err
}

func (p *PostgresBackend) Put(ctx context.Context, kind, id, parentID string, body []byte) error {
	return p.c.PutDocument(ctx, kind, id, parentID, body)
}

func (p *PostgresBackend) Get(ctx context.Context, kind, id string) ([]byte, error) {
	body, err := p.c.GetDocument(ctx, kind, id)
	return body, notFound(err)
}

func (p *PostgresBackend) Delete(ctx context.Context, kind, id string) error {
	return notFound(p.c.DeleteDocument(ctx, kind, id))
}

func (p *PostgresBackend) List(ctx context.Context, kind, parentID string) ([][]byte, error) {
	return p.c.ListDocuments(ctx, kind, parentID)
}
