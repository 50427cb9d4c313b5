package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_PPRAlphaRange(t *testing.T) {
	for _, alpha := range []float64{0.4, 0.995} {
		cfg := validConfig()
		cfg.Graph.PPRAlpha = alpha
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for ppr_alpha=%g", alpha)
		}
	}

	cfg := validConfig()
	cfg.Graph.PPRAlpha = 0.85
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error for ppr_alpha=0.85: %v", err)
	}
}

func TestValidate_TopNodesCap(t *testing.T) {
	cfg := validConfig()
	cfg.Graph.TopNodes = 41

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for top_nodes > 40")
	}
}

func TestValidate_TopKConsistency(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.DefaultTopK = 30
	cfg.Retrieval.MaxTopK = 20

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default_top_k > max_top_k")
	}
}

func TestValidate_ChunkOverlap(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.ChunkSize = 100
	cfg.Ingest.ChunkOverlap = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for chunk_overlap >= chunk_size")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Retrieval.CandidateLimit != 60 {
		t.Errorf("expected CandidateLimit=60, got %d", cfg.Retrieval.CandidateLimit)
	}
	if cfg.Retrieval.DefaultTopK != 5 || cfg.Retrieval.MaxTopK != 20 {
		t.Errorf("expected top-k defaults 5/20, got %d/%d", cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK)
	}
	if cfg.Retrieval.MinGraphConfidence != 0.35 {
		t.Errorf("expected MinGraphConfidence=0.35, got %g", cfg.Retrieval.MinGraphConfidence)
	}
	if cfg.Retrieval.MaxGraphWeight != 0.3 {
		t.Errorf("expected MaxGraphWeight=0.3, got %g", cfg.Retrieval.MaxGraphWeight)
	}
	if cfg.Retrieval.RRFGraphWeight != 0.9 {
		t.Errorf("expected RRFGraphWeight=0.9, got %g", cfg.Retrieval.RRFGraphWeight)
	}
	if cfg.Graph.PPRAlpha != 0.85 || cfg.Graph.TopNodes != 12 {
		t.Errorf("expected graph defaults 0.85/12, got %g/%d", cfg.Graph.PPRAlpha, cfg.Graph.TopNodes)
	}
	if cfg.Ingest.ChunkSize != 480 || cfg.Ingest.ChunkOverlap != 80 {
		t.Errorf("expected chunking defaults 480/80, got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Completion.MaxTokens != 1024 {
		t.Errorf("expected Completion.MaxTokens=1024, got %d", cfg.Completion.MaxTokens)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{ReadinessTimeout: 15},
		Retrieval: RetrievalConfig{CandidateLimit: 100, DefaultTopK: 8, MaxTopK: 16},
		Ingest:    IngestConfig{ChunkSize: 200, ChunkOverlap: 40},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Retrieval.CandidateLimit != 100 {
		t.Errorf("expected CandidateLimit=100, got %d", cfg.Retrieval.CandidateLimit)
	}
	if cfg.Ingest.ChunkSize != 200 || cfg.Ingest.ChunkOverlap != 40 {
		t.Errorf("expected chunking 200/40, got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
}
