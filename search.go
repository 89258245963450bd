package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultSearchLimit caps rows per entity when the caller gives no limit.
const DefaultSearchLimit = 20

// SearchHit is the outcome for one entity: matching rows or the error its
// query produced.
type SearchHit struct {
	Label string
	Rows  []Row
	Err   error
}

// SearchResults holds the hits of one search in registry order. Entities
// that matched nothing are not present.
type SearchResults struct {
	Keyword string
	Hits    []SearchHit
}

// Found reports whether any entity produced rows or an error.
func (r *SearchResults) Found() bool {
	return len(r.Hits) > 0
}

// Failed returns the labels whose query failed.
func (r *SearchResults) Failed() []string {
	var labels []string
	for _, hit := range r.Hits {
		if hit.Err != nil {
			labels = append(labels, hit.Label)
		}
	}
	return labels
}

// NoResultsMessage is reported when no entity matched. The keyword is
// quoted as typed, without escaping.
func (r *SearchResults) NoResultsMessage() string {
	return "No results found for \"" + r.Keyword + "\"."
}

// MarshalJSON writes an object keyed by label in registry order, or a
// single message when nothing was found.
func (r *SearchResults) MarshalJSON() ([]byte, error) {
	if !r.Found() {
		return json.Marshal(map[string]string{
			"message": r.NoResultsMessage(),
		})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, hit := range r.Hits {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(hit.Label)
		if err != nil {
			return nil, err
		}
		var val []byte
		if hit.Err != nil {
			val, err = json.Marshal(ToolErrorPayload{Error: hit.Err.Error(), Kind: KindPartialFailure})
		} else {
			val, err = json.Marshal(hit.Rows)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", hit.Label, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Searcher runs a keyword against every registered entity, one after the
// other, isolating failures per entity.
type Searcher struct {
	db       *sql.DB
	adapter  DBAdapter
	entities []Entity
	logger   *slog.Logger
}

// NewSearcher creates a Searcher over the given entities.
func NewSearcher(db *sql.DB, adapter DBAdapter, entities []Entity, logger *slog.Logger) *Searcher {
	return &Searcher{
		db:       db,
		adapter:  adapter,
		entities: entities,
		logger:   logger,
	}
}

// Search matches keyword as a substring of any declared column of each
// entity, returning at most limit rows per entity. A limit of zero means
// DefaultSearchLimit.
func (s *Searcher) Search(ctx context.Context, keyword string, limit int) (*SearchResults, error) {
	if keyword == "" {
		return nil, &ParamError{Name: "keyword", Message: "must not be empty"}
	}
	if limit < 0 {
		return nil, &ParamError{Name: "limit", Message: "must be a positive integer"}
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	results := &SearchResults{Keyword: keyword}
	pattern := "%" + keyword + "%"

	for _, entity := range s.entities {
		rows, err := s.searchEntity(ctx, entity, pattern, limit)
		if err != nil {
			s.logger.Warn("search target failed", "label", entity.Label, "table", entity.Table, "error", err)
			results.Hits = append(results.Hits, SearchHit{Label: entity.Label, Err: err})
			continue
		}
		if len(rows) > 0 {
			results.Hits = append(results.Hits, SearchHit{Label: entity.Label, Rows: rows})
		}
	}

	if failed := results.Failed(); len(failed) > 0 {
		s.logger.Warn("search completed with failures", "keyword", keyword, "hits", len(results.Hits), "failed", failed)
	} else {
		s.logger.Debug("search complete", "keyword", keyword, "hits", len(results.Hits))
	}
	return results, nil
}

func (s *Searcher) searchEntity(ctx context.Context, entity Entity, pattern string, limit int) ([]Row, error) {
	query, args := s.buildQuery(entity, pattern, limit)
	result, _, err := queryRows(ctx, s.db, s.adapter, 0, query, args...)
	return result, err
}

func (s *Searcher) buildQuery(entity Entity, pattern string, limit int) (string, []any) {
	conditions := make([]string, len(entity.Columns))
	args := make([]any, 0, len(entity.Columns)+1)
	for i, col := range entity.Columns {
		conditions[i] = fmt.Sprintf("%s LIKE %s", col, s.adapter.Placeholder(i+1))
		args = append(args, pattern)
	}
	args = append(args, limit)

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT %s",
		entity.Table, strings.Join(conditions, " OR "), s.adapter.Placeholder(len(args)))
	return query, args
}
