package coachbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kapu/chess-coach-go/internal/classify"
	"github.com/kapu/chess-coach-go/internal/coach"
	"github.com/kapu/chess-coach-go/internal/coach/persona"
	"github.com/kapu/chess-coach-go/internal/config"
	"github.com/kapu/chess-coach-go/internal/engine"
	"github.com/kapu/chess-coach-go/internal/resilience"
	"github.com/kapu/chess-coach-go/internal/service/cache"
	svccoach "github.com/kapu/chess-coach-go/internal/service/coach"
)

// Deps bundles everything the server needs, wired from config.
type Deps struct {
	Service *svccoach.Service
	Engine  *engine.Adapter
	Cache   *cache.CacheService
	Repo    svccoach.Repository
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(cfg.StockfishPath) == "" {
		return nil, fmt.Errorf("STOCKFISH_PATH is required for the analysis engine")
	}

	adapter, err := engine.NewAdapter(engine.Config{
		BinaryPath: cfg.StockfishPath,
		Threads:    cfg.EngineThreads,
		HashMB:     cfg.EngineHashMB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	catalog, err := persona.New(cfg.PersonaDir)
	if err != nil {
		return nil, fmt.Errorf("load persona catalog: %w", err)
	}

	client, err := coach.NewClient(coach.ClientConfig{
		APIKey:  cfg.AgentAPIKey,
		BaseURL: cfg.AgentBaseURL,
		Model:   cfg.AgentModel,
		Timeout: time.Duration(cfg.AgentTimeout) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init agent client: %w", err)
	}

	var corpus coach.CorpusProvider
	if strings.TrimSpace(cfg.CorpusPath) != "" {
		corpus, err = newFileCorpus(cfg.CorpusPath)
		if err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
	}

	orchestrator := coach.NewOrchestrator(client, catalog, corpus, resilience.DefaultPolicy(), logger)

	// Cache (Redis required for sessions)
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required for coaching sessions")
	}
	cconf, perr := parseRedisURL(cfg.RedisURL)
	if perr != nil {
		return nil, fmt.Errorf("parse redis url: %w", perr)
	}
	cacheSvc, err := cache.NewCacheService(*cconf, logger)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	// Repository (DB optional; fall back to in-memory for local development)
	var repo svccoach.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo = svccoach.NewRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, session archive kept in memory")
		repo = svccoach.NewMemoryRepository()
	}

	svcCfg := svccoach.Config{
		SearchDepth:  cfg.SearchDepth,
		SessionTTL:   time.Duration(cfg.SessionTTLSec) * time.Second,
		HistoryLimit: cfg.HistoryLimit,
		Thresholds:   thresholdsFromConfig(cfg),
	}

	service, err := svccoach.NewService(adapter, orchestrator, cacheSvc, repo, svcCfg, logger)
	if err != nil {
		return nil, err
	}

	return &Deps{Service: service, Engine: adapter, Cache: cacheSvc, Repo: repo}, nil
}

// thresholdsFromConfig overlays configured centipawn cutoffs onto the
// defaults. A zero value keeps the default for that band.
func thresholdsFromConfig(cfg *config.AppConfig) classify.Thresholds {
	t := classify.DefaultThresholds()
	if cfg.BlunderLossCP > 0 {
		t.BlunderLoss = cfg.BlunderLossCP
	}
	if cfg.MistakeLossCP > 0 {
		t.MistakeLoss = cfg.MistakeLossCP
	}
	if cfg.InaccuracyLossCP > 0 {
		t.InaccuracyLoss = cfg.InaccuracyLossCP
	}
	if cfg.ExcellentLossCP > 0 {
		t.ExcellentLoss = cfg.ExcellentLossCP
	}
	return t
}

// fileCorpus serves a reference text loaded once at startup.
type fileCorpus struct {
	text string
}

func newFileCorpus(path string) (*fileCorpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("corpus file %s is empty", path)
	}
	return &fileCorpus{text: text}, nil
}

func (f *fileCorpus) Corpus(context.Context) (string, error) { return f.text, nil }

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if u.Path != "" {
		p := strings.TrimPrefix(u.Path, "/")
		if p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				db = n
			}
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
