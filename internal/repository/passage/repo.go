// Package passage persists corpus passages as Redis JSON documents behind an
// FT full-text index.
package passage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/marysss1/QiAIchemy-backend/internal/db"
	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
)

const (
	keyPrefix = domain.KeyPrefix + "passage:"
	indexName = domain.KeyPrefix + "passage:idx"
)

// store is the consumer interface for passages (ISP).
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the passage storage contract of the retrieval and ingest
// services.
type Repo struct {
	store store
}

// New creates a passage repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the passage FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:        indexName,
		StorageType: db.StorageJSON,
		Prefixes:    []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: "$.search_text", Alias: "search_text", Type: db.IndexFieldText},
			{Name: "$.source_title", Alias: "source_title", Type: db.IndexFieldText},
			{Name: "$.section_title", Alias: "section_title", Type: db.IndexFieldText},
			{Name: "$.source_id", Alias: "source_id", Type: db.IndexFieldTag},
			{Name: "$.chunk_index", Alias: "chunk_index", Type: db.IndexFieldNumeric},
			{Name: "$.updated_at", Alias: "updated_at", Type: db.IndexFieldNumeric, Sortable: true},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Lost race against a concurrent EnsureIndex.
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// UpsertBatch writes passages in a single pipelined round trip.
func (r *Repo) UpsertBatch(ctx context.Context, passages []dompas.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	items := make([]db.JSONSetItem, 0, len(passages))
	for i := range passages {
		p := &passages[i]
		doc := buildDoc(p)
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal passage %s: %w", p.ID(), err)
		}
		items = append(items, db.JSONSetItem{
			Key:  passageKey(p.ID()),
			Path: "$",
			Data: data,
		})
	}

	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert batch: %w", domain.ErrPassageStoreUnavailable, err)
	}
	return nil
}

// FindByTokens returns passages whose search text, source title or section
// title matches any of the tokens, best match first. An empty token list
// yields no candidates.
func (r *Repo) FindByTokens(ctx context.Context, tokens []string, limit int) ([]dompas.Passage, error) {
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	result, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    indexName,
		Query:        tokenQuery(tokens),
		TopK:         limit,
		ReturnFields: []string{"$"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: find by tokens: %w", domain.ErrPassageStoreUnavailable, err)
	}

	return entriesToPassages(result.Entries, limit, nil), nil
}

// FindRecent returns the most recently updated passages, excluding the given
// passage IDs. Used to top up the candidate pool when token matches run short.
func (r *Repo) FindRecent(ctx context.Context, excludeIDs []string, limit int) ([]dompas.Passage, error) {
	if limit <= 0 {
		return nil, nil
	}

	exclude := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[passageKey(id)] = struct{}{}
	}

	// Overfetch so excluded entries do not shrink the page.
	result, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName:    indexName,
		SortBy:       "updated_at",
		SortDesc:     true,
		Limit:        limit + len(excludeIDs),
		ReturnFields: []string{"$"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: find recent: %w", domain.ErrPassageStoreUnavailable, err)
	}

	return entriesToPassages(result.Entries, limit, exclude), nil
}

// DeleteBySource removes every passage of a source document. Ingest calls
// this before re-upserting so shrinking sources leave no stale tail chunks.
func (r *Repo) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	query := fmt.Sprintf("@source_id:{%s}", db.EscapeToken(sourceID))

	result, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName: indexName,
		Query:     query,
		Limit:     10000,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: list source passages: %w", domain.ErrPassageStoreUnavailable, err)
	}

	var deleted int
	for _, entry := range result.Entries {
		if err := r.store.Del(ctx, entry.Key); err != nil {
			return deleted, fmt.Errorf("%w: delete %s: %w", domain.ErrPassageStoreUnavailable, entry.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

// IndexReady reports whether the passage FT index exists. Used by the
// health service.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	ready, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	return ready, nil
}

// Count returns the total number of stored passages.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, "*")
	if err != nil {
		return 0, fmt.Errorf("%w: count passages: %w", domain.ErrPassageStoreUnavailable, err)
	}
	return n, nil
}

func passageKey(id string) string {
	return keyPrefix + id
}

// tokenQuery builds an OR query over the search text and title fields.
// search_text already carries the tokenized titles, so this is where CJK
// title tokens match; the raw title fields catch whole Latin words. Tokens
// are escaped so FT.SEARCH syntax characters match literally.
func tokenQuery(tokens []string) string {
	escaped := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		escaped = append(escaped, db.EscapeToken(tok))
	}
	return fmt.Sprintf("@search_text|source_title|section_title:(%s)", strings.Join(escaped, "|"))
}

func entriesToPassages(entries []db.SearchEntry, limit int, excludeKeys map[string]struct{}) []dompas.Passage {
	passages := make([]dompas.Passage, 0, min(len(entries), limit))
	for _, entry := range entries {
		if len(passages) >= limit {
			break
		}
		if _, skip := excludeKeys[entry.Key]; skip {
			continue
		}
		raw := entry.Fields["$"]
		if raw == "" {
			continue
		}
		p, err := parseEntryDoc(raw)
		if err != nil {
			// A malformed document should not poison the whole result.
			continue
		}
		passages = append(passages, p)
	}
	return passages
}
