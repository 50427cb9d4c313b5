package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Repository loads and memoizes graphs by resolved file path. Concurrent
// first loads of the same path share a single in-flight read. There is no
// file-watch invalidation: edits to a graph file require a restart.
type Repository struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
	group  singleflight.Group
}

// NewRepository creates an empty graph repository.
func NewRepository() *Repository {
	return &Repository{graphs: make(map[string]*Graph)}
}

// Get returns the graph at path, loading and caching it on first access.
func (r *Repository) Get(path string) (*Graph, error) {
	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve graph path %q: %w", path, err)
	}

	r.mu.RLock()
	g, ok := r.graphs[resolved]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	v, err, _ := r.group.Do(resolved, func() (any, error) {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("read graph file: %w", err)
		}
		g, err := Parse(data)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.graphs[resolved] = g
		r.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Graph), nil
}

// Analyzer binds a repository to one graph path and one parameter set, and
// degrades gracefully: if the graph cannot be read or parsed, every query
// gets zero confidence and empty boosts instead of an error. The graph
// channel is optional, not load-bearing.
type Analyzer struct {
	repo   *Repository
	path   string
	params Params
	logger *zap.Logger

	warnOnce sync.Once
}

// NewAnalyzer creates a query analyzer for the graph at path. An empty path
// disables the channel.
func NewAnalyzer(repo *Repository, path string, params Params, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		repo:   repo,
		path:   path,
		params: params,
		logger: logger.With(zap.String("component", "graph_analyzer")),
	}
}

// Analyze computes graph features for a query, or zero-confidence features
// when the graph is unavailable.
func (a *Analyzer) Analyze(query, context string) Features {
	if a.path == "" {
		return Features{}
	}

	g, err := a.repo.Get(a.path)
	if err != nil {
		a.warnOnce.Do(func() {
			a.logger.Warn("graph unavailable, channel disabled",
				zap.String("path", a.path),
				zap.Error(err),
			)
		})
		return Features{}
	}

	return g.Analyze(query, context, a.params)
}
