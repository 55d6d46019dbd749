package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Vector store backends understood by the vectorstore package.
const (
	ProviderQdrant   = "qdrant"
	ProviderChroma   = "chroma"
	ProviderPGVector = "pgvector"
	ProviderMemory   = "memory"
)

// Config holds every setting read from the environment.
type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	LogLevel    string
	LogJSON     bool

	// Gemini
	GeminiAPIKey     string
	GeminiTextModel  string
	GeminiEmbedModel string
	GeminiRPM        int

	// Retrieval pipeline
	VectorDimension int
	ChunkMaxChars   int
	ReviewThreshold float64
	SearchLimit     int

	// Vector store
	VectorProvider   string
	VectorCollection string
	QdrantURL        string
	QdrantAPIKey     string
	ChromaURL        string
	PGVectorDSN      string

	// Review workflow
	OpusAPIKey     string
	OpusWorkflowID string
	OpusRunURL     string

	UnidocLicenseKey string
	WatchDir         string
	OTLPEndpoint     string
}

// LoadConfig reads configuration from the environment, loading .env first if present.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "release"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogJSON:     getEnvBool("LOG_JSON", false),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiEmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		GeminiRPM:        getEnvInt("GEMINI_RPM", 60),

		VectorDimension: getEnvInt("VECTOR_DIM", 768),
		ChunkMaxChars:   getEnvInt("CHUNK_MAX_CHARS", 800),
		ReviewThreshold: getEnvFloat64("REVIEW_THRESHOLD", 0.6),
		SearchLimit:     getEnvInt("SEARCH_LIMIT", 5),

		VectorProvider:   strings.ToLower(getEnv("VECTOR_PROVIDER", "")),
		VectorCollection: getEnv("VECTOR_COLLECTION", "rag_chunks"),
		QdrantURL:        getEnv("QDRANT_URL", ""),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		ChromaURL:        getEnv("CHROMA_URL", "http://localhost:8000"),
		PGVectorDSN:      getEnv("PGVECTOR_DSN", ""),

		OpusAPIKey:     getEnv("OPUS_API_KEY", ""),
		OpusWorkflowID: getEnv("OPUS_WORKFLOW_ID", ""),
		OpusRunURL:     getEnv("OPUS_RUN_URL", "https://api.opus.ai/workflow/run"),

		UnidocLicenseKey: getEnv("UNIDOC_LICENSE_KEY", ""),
		WatchDir:         getEnv("WATCH_DIR", ""),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.VectorProvider == "" {
		cfg.VectorProvider = ProviderMemory
		if cfg.QdrantURL != "" {
			cfg.VectorProvider = ProviderQdrant
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric settings the pipeline depends on.
func (c *Config) Validate() error {
	if c.VectorDimension <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive, got %d", c.VectorDimension)
	}
	if c.ChunkMaxChars <= 0 {
		return fmt.Errorf("CHUNK_MAX_CHARS must be positive, got %d", c.ChunkMaxChars)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be positive, got %d", c.SearchLimit)
	}
	if c.ReviewThreshold < 0 || c.ReviewThreshold > 1 {
		return fmt.Errorf("REVIEW_THRESHOLD must be within [0,1], got %v", c.ReviewThreshold)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode)
	}
	switch c.VectorProvider {
	case ProviderQdrant:
		if c.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required for the qdrant provider")
		}
	case ProviderPGVector:
		if c.PGVectorDSN == "" {
			return fmt.Errorf("PGVECTOR_DSN is required for the pgvector provider")
		}
	case ProviderChroma, ProviderMemory:
	default:
		return fmt.Errorf("unknown VECTOR_PROVIDER %q", c.VectorProvider)
	}
	return nil
}

// ReviewConfigured reports whether the external review workflow can be called.
func (c *Config) ReviewConfigured() bool {
	return c.OpusAPIKey != "" && c.OpusWorkflowID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
