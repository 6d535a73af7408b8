package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	StockfishPath   string
	EngineThreads   int
	EngineHashMB    int
	SearchDepth     int

	AgentAPIKey  string
	AgentBaseURL string
	AgentModel   string
	AgentTimeout int

	RedisURL    string
	DatabaseURL string

	PersonaDir string
	CorpusPath string

	SessionTTLSec int
	HistoryLimit  int

	BlunderLossCP    int
	MistakeLossCP    int
	InaccuracyLossCP int
	ExcellentLossCP  int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:    ":8080",
		EngineThreads: 1,
		EngineHashMB:  128,
		SearchDepth:   14,
		AgentTimeout:  60,
		SessionTTLSec: 3600,
		HistoryLimit:  20,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEARCH_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SearchDepth = n
		}
	}

	cfg.AgentAPIKey = strings.TrimSpace(os.Getenv("AGENT_API_KEY"))
	cfg.AgentBaseURL = strings.TrimSpace(os.Getenv("AGENT_BASE_URL"))
	cfg.AgentModel = strings.TrimSpace(os.Getenv("AGENT_MODEL"))
	if v := strings.TrimSpace(os.Getenv("AGENT_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AgentTimeout = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.PersonaDir = strings.TrimSpace(os.Getenv("PERSONA_DIR"))
	cfg.CorpusPath = strings.TrimSpace(os.Getenv("CORPUS_PATH"))

	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}

	// Classifier cutoffs; zero means package defaults.
	cfg.BlunderLossCP = envInt("CLASSIFY_BLUNDER_CP")
	cfg.MistakeLossCP = envInt("CLASSIFY_MISTAKE_CP")
	cfg.InaccuracyLossCP = envInt("CLASSIFY_INACCURACY_CP")
	cfg.ExcellentLossCP = envInt("CLASSIFY_EXCELLENT_CP")

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	if cfg.AgentAPIKey == "" {
		return nil, errors.New("AGENT_API_KEY is required")
	}
	if cfg.AgentModel == "" {
		return nil, errors.New("AGENT_MODEL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

func envInt(name string) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
