package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL   string
	AwsAccessKey  string
	AwsSecretKey  string
	AwsRegion     string
	BucketName    string
	ArchivePrefix string
	ShareLinkTTL  time.Duration

	AIAPIKey    string
	EmbedModel  string
	EmbedDim    int
	VisionModel string

	TargetLanguage  string
	MaxOutputTokens int

	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int

	PageConcurrency int
	MaxPages        int

	AnalyzeMaxRetries int
	AnalyzeBaseDelay  time.Duration
	AnalyzeMaxDelay   time.Duration

	PdftoppmBin        string
	RasterDPI          int
	SofficeBin         string
	OfficeProbeCmd     string
	ConvertTimeout     time.Duration
	OfficeTextFallback bool

	IngestWorkers int
	IngestQueue   int
	IngestTimeout time.Duration

	JWTSecret   string
	Port        string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AwsAccessKey:  getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:  getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:     getEnv("AWS_REGION", "us-east-2"),
		BucketName:    getEnv("BUCKET_NAME", "contexta-docs"),
		ArchivePrefix: getEnv("ARCHIVE_PREFIX", "archive"),
		ShareLinkTTL:  getEnvDuration("SHARE_LINK_TTL", 7*24*time.Hour),

		AIAPIKey:    getEnv("GEMINI_API_KEY", ""),
		EmbedModel:  getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:    getEnvInt("EMBED_DIM", 768),
		VisionModel: getEnv("VISION_MODEL", "gemini-1.5-flash"),

		TargetLanguage:  getEnv("TARGET_LANGUAGE", "Japanese"),
		MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 2048),

		ChunkSize:      getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 80),
		EmbedBatchSize: getEnvInt("EMBED_BATCH_SIZE", 16),

		PageConcurrency: getEnvInt("PAGE_CONCURRENCY", 4),
		MaxPages:        getEnvInt("MAX_PAGES", 0),

		AnalyzeMaxRetries: getEnvInt("ANALYZE_MAX_RETRIES", 3),
		AnalyzeBaseDelay:  getEnvDuration("ANALYZE_BASE_DELAY", 2*time.Second),
		AnalyzeMaxDelay:   getEnvDuration("ANALYZE_MAX_DELAY", time.Minute),

		PdftoppmBin:        getEnv("PDFTOPPM_BIN", "pdftoppm"),
		RasterDPI:          getEnvInt("RASTER_DPI", 150),
		SofficeBin:         getEnv("SOFFICE_BIN", "soffice"),
		OfficeProbeCmd:     getEnv("OFFICE_PROBE_CMD", "soffice --version"),
		ConvertTimeout:     getEnvDuration("CONVERT_TIMEOUT", 3*time.Minute),
		OfficeTextFallback: getEnvBool("OFFICE_TEXT_FALLBACK", false),

		IngestWorkers: getEnvInt("INGEST_WORKERS", 2),
		IngestQueue:   getEnvInt("INGEST_QUEUE", 64),
		IngestTimeout: getEnvDuration("INGEST_TIMEOUT", 30*time.Minute),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the pipeline knobs for values the ingestion engine cannot work with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.PageConcurrency < 1 {
		return fmt.Errorf("PAGE_CONCURRENCY must be at least 1, got %d", c.PageConcurrency)
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", c.IngestWorkers)
	}
	if c.AnalyzeMaxRetries < 0 {
		return fmt.Errorf("ANALYZE_MAX_RETRIES must not be negative, got %d", c.AnalyzeMaxRetries)
	}
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be at least 1, got %d", c.EmbedBatchSize)
	}
	// pgvector's hnsw index accepts at most 2000 dimensions
	if c.EmbedDim < 1 || c.EmbedDim > 2000 {
		return fmt.Errorf("EMBED_DIM must be in [1, 2000], got %d", c.EmbedDim)
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("env value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("env value is not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("env value is not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
