package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	AI          AIConfig         `json:"ai"`
	Extract     ExtractConfig    `json:"extract"`
	Ingest      IngestConfig     `json:"ingest"`
	Repair      RepairConfig     `json:"repair"`
	Query       QueryConfig      `json:"query"`
	FileStore   FileStoreConfig  `json:"file_store"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	EmbedModel    string      `json:"embed_model"`
	EmbedDim      int         `json:"embed_dim"`
	Timeout       int         `json:"timeout"`
	MaxRetries    int         `json:"max_retries"`
	RetryBaseMs   int         `json:"retry_base_ms"`
	MaxInputChars int         `json:"max_input_chars"`
	Data          interface{} `json:"data"`
}

type ExtractConfig struct {
	Provider    string      `json:"provider"`
	MaxSizeMB   int64       `json:"max_size_mb"`
	Timeout     int         `json:"timeout"`
	MaxRetries  int         `json:"max_retries"`
	RetryBaseMs int         `json:"retry_base_ms"`
	Data        interface{} `json:"data"`
}

type IngestConfig struct {
	ChunkSize      int `json:"chunk_size"`
	ChunkOverlap   int `json:"chunk_overlap"`
	EmbedBatch     int `json:"embed_batch"`
	BatchDelayMs   int `json:"batch_delay_ms"`
	UploadWindowMs int `json:"upload_window_ms"`
}

type RepairConfig struct {
	BatchSize      int    `json:"batch_size"`
	CronSpec       string `json:"cron_spec"`
	StaleCronSpec  string `json:"stale_cron_spec"`
	StaleAfterSecs int64  `json:"stale_after_secs"`
}

type QueryConfig struct {
	Threshold float32 `json:"threshold"`
	Count     int     `json:"count"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "gemini-embedding-001"
	}
	if cfg.AI.EmbedDim == 0 {
		cfg.AI.EmbedDim = 768
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.RetryBaseMs == 0 {
		cfg.AI.RetryBaseMs = 1000
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 8000
	}
	if cfg.Extract.Provider == "" {
		cfg.Extract.Provider = "text"
	}
	if cfg.Extract.MaxSizeMB == 0 {
		cfg.Extract.MaxSizeMB = 10
	}
	if cfg.Extract.Timeout == 0 {
		cfg.Extract.Timeout = 60
	}
	if cfg.Extract.MaxRetries == 0 {
		cfg.Extract.MaxRetries = 3
	}
	if cfg.Extract.RetryBaseMs == 0 {
		cfg.Extract.RetryBaseMs = 1000
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.EmbedBatch == 0 {
		cfg.Ingest.EmbedBatch = 5
	}
	if cfg.Ingest.BatchDelayMs == 0 {
		cfg.Ingest.BatchDelayMs = 200
	}
	if cfg.Repair.BatchSize == 0 {
		cfg.Repair.BatchSize = 20
	}
	if cfg.Repair.CronSpec == "" {
		cfg.Repair.CronSpec = "*/10 * * * *"
	}
	if cfg.Repair.StaleCronSpec == "" {
		cfg.Repair.StaleCronSpec = "*/15 * * * *"
	}
	if cfg.Repair.StaleAfterSecs == 0 {
		cfg.Repair.StaleAfterSecs = 1800
	}
	if cfg.Query.Threshold == 0 {
		cfg.Query.Threshold = 0.5
	}
	if cfg.Query.Count == 0 {
		cfg.Query.Count = 5
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	return &cfg, nil
}
