// Package docstore wraps the supabase (PostgREST) client used when the
// clinic's records live in the managed backend instead of a local Postgres.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// ErrNoRows is returned by DecodeOne when the response array is empty.
var ErrNoRows = errors.New("docstore: no rows")

// Returning asks PostgREST to echo the written rows back.
const Returning = "representation"

// Client is a thin handle on a supabase project.
type Client struct {
	sb *supa.Client
}

// NewClient connects with the project's service-role key.
func NewClient(url, serviceKey string) (*Client, error) {
	sb, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Client{sb: sb}, nil
}

// From starts a query on a table (a "collection" in document-store terms).
func (c *Client) From(table string) *postgrest.QueryBuilder {
	return c.sb.From(table)
}

// Ping issues a one-row read against the therapist table.
func (c *Client) Ping(_ context.Context) error {
	_, _, err := c.From("therapist").Select("id", "", false).Limit(1, "").Execute()
	if err != nil {
		return fmt.Errorf("supabase ping: %w", err)
	}
	return nil
}

// DecodeAll unmarshals a PostgREST array response.
func DecodeAll[T any](data []byte) ([]T, error) {
	var rows []T
	if len(data) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// DecodeOne returns the first row of a PostgREST array response.
func DecodeOne[T any](data []byte) (*T, error) {
	rows, err := DecodeAll[T](data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}

// Span converts limit/offset paging into PostgREST's inclusive range.
func Span(limit, offset int) (from, to int) {
	if limit <= 0 {
		limit = 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset, offset + limit - 1
}

// Desc orders newest first.
var Desc = &postgrest.OrderOpts{Ascending: false}

// Asc orders oldest first.
var Asc = &postgrest.OrderOpts{Ascending: true}
