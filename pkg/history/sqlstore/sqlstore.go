// Package sqlstore implements history.Driver on ent's SQL dialect layer. The
// sqlite and postgres drivers differ only in the dialect they open.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/google/uuid"

	"github.com/papercomputeco/murmur/pkg/history"
)

const (
	tableCompletions = "completions"

	colID          = "id"
	colSessionID   = "session_id"
	colChannelID   = "channel_id"
	colQuery       = "query"
	colText        = "text"
	colSuggestions = "suggestions"
	colMetadata    = "metadata"
	colDurationMS  = "duration_ms"
	colTTFTMS      = "ttft_ms"
	colTTFAMS      = "ttfa_ms"
	colWordCount   = "word_count"
	colCompletedAt = "completed_at"
)

// textSize makes ent map a string column to TEXT on every dialect.
const textSize = 2147483647

var columns = []string{
	colID, colSessionID, colChannelID, colQuery, colText, colSuggestions, colMetadata,
	colDurationMS, colTTFTMS, colTTFAMS, colWordCount, colCompletedAt,
}

var completionColumns = []*schema.Column{
	{Name: colID, Type: field.TypeString},
	{Name: colSessionID, Type: field.TypeString},
	{Name: colChannelID, Type: field.TypeString},
	{Name: colQuery, Type: field.TypeString, Size: textSize},
	{Name: colText, Type: field.TypeString, Size: textSize},
	{Name: colSuggestions, Type: field.TypeJSON},
	{Name: colMetadata, Type: field.TypeJSON},
	{Name: colDurationMS, Type: field.TypeInt64},
	{Name: colTTFTMS, Type: field.TypeInt64},
	{Name: colTTFAMS, Type: field.TypeInt64},
	{Name: colWordCount, Type: field.TypeInt},
	{Name: colCompletedAt, Type: field.TypeTime},
}

// CompletionsTable is the schema migrated by New.
var CompletionsTable = &schema.Table{
	Name:       tableCompletions,
	Columns:    completionColumns,
	PrimaryKey: []*schema.Column{completionColumns[0]},
	Indexes: []*schema.Index{
		{
			Name:    "completions_session_id_completed_at",
			Columns: []*schema.Column{completionColumns[1], completionColumns[11]},
		},
	},
}

// Store is a history driver over an ent SQL driver.
type Store struct {
	drv *entsql.Driver
}

// New wraps drv and runs ent's auto-migration for the completions table.
func New(ctx context.Context, drv *entsql.Driver) (*Store, error) {
	migrate, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare migration: %w", err)
	}
	if err := migrate.Create(ctx, CompletionsTable); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{drv: drv}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.drv.DB()
}

// Append inserts entry.
func (s *Store) Append(ctx context.Context, entry *history.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	suggestions, err := json.Marshal(orEmpty(entry.Suggestions))
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	metadata, err := json.Marshal(orEmptyMap(entry.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query, args := entsql.Dialect(s.drv.Dialect()).
		Insert(tableCompletions).
		Columns(columns...).
		Values(
			entry.ID,
			entry.SessionID,
			entry.ChannelID,
			entry.Query,
			entry.Text,
			string(suggestions),
			string(metadata),
			entry.Duration.Milliseconds(),
			entry.TTFT.Milliseconds(),
			entry.TTFA.Milliseconds(),
			entry.WordCount,
			entry.CompletedAt.UTC(),
		).
		Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("insert completion %s: %w", entry.ID, err)
	}
	return nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]*history.Entry, error) {
	selector := entsql.Dialect(s.drv.Dialect()).
		Select(columns...).
		From(entsql.Table(tableCompletions))
	if sessionID != "" {
		selector.Where(entsql.EQ(colSessionID, sessionID))
	}
	selector.OrderBy(entsql.Desc(colCompletedAt))
	if limit > 0 {
		selector.Limit(limit)
	}
	query, args := selector.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []*history.Entry
	for rows.Next() {
		var (
			e                 history.Entry
			suggestions, meta []byte
			dur, ttft, ttfa   int64
			completedAt       time.Time
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ChannelID, &e.Query, &e.Text,
			&suggestions, &meta, &dur, &ttft, &ttfa, &e.WordCount, &completedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		if err := json.Unmarshal(suggestions, &e.Suggestions); err != nil {
			return nil, fmt.Errorf("decode suggestions for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", e.ID, err)
		}
		if len(e.Suggestions) == 0 {
			e.Suggestions = nil
		}
		if len(e.Metadata) == 0 {
			e.Metadata = nil
		}
		e.Duration = time.Duration(dur) * time.Millisecond
		e.TTFT = time.Duration(ttft) * time.Millisecond
		e.TTFA = time.Duration(ttfa) * time.Millisecond
		e.CompletedAt = completedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.drv.Close()
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func orEmptyMap(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
