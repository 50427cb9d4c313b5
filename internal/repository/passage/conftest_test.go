package passage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/marysss1/QiAIchemy-backend/internal/db"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) error
	delFn          func(ctx context.Context, key string) error
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	searchTextFn   func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchListFn   func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	searchCountFn  func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testPassage(t *testing.T, sourceID string, chunkIndex int) dompas.Passage {
	t.Helper()
	return dompas.Reconstruct(
		sourceID, "体质调理手册", "docs/tizhi.md", "气虚",
		chunkIndex, "气虚体质常见乏力气短", 10,
		[]float32{0.1, 0.2, 0.3},
		[]string{"气虚", "虚体", "体质", "乏力"},
		time.Unix(1700000000, 0).UTC(),
	)
}

// searchEntryFor marshals a passage the way the store returns FT.SEARCH hits.
func searchEntryFor(t *testing.T, p dompas.Passage) db.SearchEntry {
	t.Helper()
	doc := buildDoc(&p)
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal test doc: %v", err)
	}
	return db.SearchEntry{
		Key:    passageKey(p.ID()),
		Score:  1,
		Fields: map[string]string{"$": string(data)},
	}
}
