package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultRefusalText is returned when retrieval finds no usable evidence or the
// generated answer fails validation.
const DefaultRefusalText = "I can only answer questions about the documents in this policy corpus. " +
	"Please ask about company policies and procedures contained in the uploaded documents."

// Default embedding model names per backend.
const (
	DefaultHashingModel = "feature-hashing"
	DefaultRemoteModel  = "sentence-transformers/all-MiniLM-L6-v2"
)

// ConfigFileEnv names the environment variable that points at an optional YAML overlay.
const ConfigFileEnv = "POLICYRAG_CONFIG"

// Config holds all configuration for the application. It is loaded once and
// passed by value; components copy the fields they need.
type Config struct {
	// Ingestion
	Seed           int64  `validate:"gte=0"`
	PersistDir     string `validate:"required"`
	ContextDir     string `validate:"required"`
	ChunkSize      int    `validate:"gt=0"`
	ChunkOverlap   int    `validate:"gte=0,ltfield=ChunkSize"`
	IngestReset    bool
	EmbedBatchSize int `validate:"gt=0,lte=2048"`

	// Embeddings
	EmbeddingBackend string `validate:"oneof=hashing openai"`
	EmbeddingModel   string `validate:"required"`
	EmbeddingBaseURL string `validate:"required_if=EmbeddingBackend openai"`
	EmbeddingAPIKey  string
	EmbeddingDim     int `validate:"gt=0"`

	// Retrieval and answer validation
	TopK           int     `validate:"gt=0,lte=100"`
	MinRelevance   float64 `validate:"gte=-1,lte=1"`
	MaxAnswerChars int     `validate:"gt=0"`
	RefusalText    string  `validate:"required"`

	// Generation
	LLMAPIKey      string
	LLMBaseURL     string        `validate:"required,url"`
	LLMModelName   string        `validate:"required"`
	LLMTemperature float32       `validate:"gte=0,lte=2"`
	LLMMaxTokens   int           `validate:"gt=0"`
	LLMTimeout     time.Duration `validate:"gt=0"`
	SiteURL        string
	AppName        string

	// Vector store
	VectorBackend    string `validate:"oneof=local qdrant"`
	QdrantURL        string `validate:"required_if=VectorBackend qdrant"`
	QdrantCollection string `validate:"required"`

	// Server
	Port           string `validate:"required,numeric"`
	AllowedOrigins []string

	// Logging
	LogLevel  slog.Level
	LogFormat string `validate:"oneof=text json"`
}

// StorePath returns the SQLite file backing the local vector store and ingest manifest.
func (c Config) StorePath() string {
	return filepath.Join(c.PersistDir, "store.db")
}

// Load reads configuration from environment variables and returns a Config.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// If configFile is non-empty (or POLICYRAG_CONFIG is set), the YAML file is read as a
// fallback layer: environment variables take precedence over file values, and file
// values over defaults.
func Load(configFile string) (Config, error) {
	loadDotEnv()

	if configFile == "" {
		configFile = os.Getenv(ConfigFileEnv)
	}
	file, err := readOverlay(configFile)
	if err != nil {
		return Config{}, err
	}
	src := source{file: file}

	cfg := Config{
		PersistDir:       src.getString("PERSIST_DIR", "./data/store"),
		ContextDir:       src.getString("CONTEXT_DIR", "./data/policies"),
		EmbeddingBackend: strings.ToLower(src.getString("EMBEDDING_BACKEND", "hashing")),
		EmbeddingBaseURL: src.getString("EMBEDDING_BASE_URL", ""),
		EmbeddingAPIKey:  src.getString("EMBEDDING_API_KEY", ""),
		RefusalText:      src.getString("REFUSAL_TEXT", DefaultRefusalText),
		LLMAPIKey:        src.getString("OPENROUTER_API_KEY", ""),
		LLMBaseURL:       src.getString("OPENAI_API_BASE", "https://openrouter.ai/api/v1"),
		LLMModelName:     src.getString("LLM_MODEL_NAME", "openai/gpt-4o-mini"),
		SiteURL:          src.getString("OPENROUTER_SITE_URL", "http://localhost"),
		AppName:          src.getString("OPENROUTER_APP_NAME", "policy-rag"),
		VectorBackend:    strings.ToLower(src.getString("VECTOR_BACKEND", "local")),
		QdrantURL:        src.getString("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: src.getString("QDRANT_COLLECTION", "policies"),
		Port:             src.getString("PORT", "8000"),
		LogFormat:        strings.ToLower(src.getString("LOG_FORMAT", "text")),
		AllowedOrigins:   splitList(src.getString("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
	}
	cfg.EmbeddingModel = src.getString("EMB_MODEL", defaultEmbeddingModel(cfg.EmbeddingBackend))
	if cfg.EmbeddingBaseURL == "" && cfg.EmbeddingBackend == "openai" {
		cfg.EmbeddingBaseURL = cfg.LLMBaseURL
	}
	if cfg.EmbeddingAPIKey == "" {
		cfg.EmbeddingAPIKey = cfg.LLMAPIKey
	}

	var errs []error
	cfg.Seed = src.getInt64("SEED", 42, &errs)
	cfg.ChunkSize = src.getInt("CHUNK_SIZE", 1100, &errs)
	cfg.ChunkOverlap = src.getInt("CHUNK_OVERLAP", 160, &errs)
	cfg.IngestReset = src.getBool("INGEST_RESET", false, &errs)
	cfg.EmbedBatchSize = src.getInt("EMBED_BATCH_SIZE", 64, &errs)
	cfg.EmbeddingDim = src.getInt("EMBEDDING_DIM", 384, &errs)
	cfg.TopK = src.getInt("TOP_K", 5, &errs)
	cfg.MinRelevance = src.getFloat("MIN_RELEVANCE", 0.25, &errs)
	cfg.MaxAnswerChars = src.getInt("MAX_ANSWER_CHARS", 2000, &errs)
	cfg.LLMTemperature = float32(src.getFloat("LLM_TEMPERATURE", 0.0, &errs))
	cfg.LLMMaxTokens = src.getInt("LLM_MAX_TOKENS", 512, &errs)
	cfg.LLMTimeout = time.Duration(src.getInt("LLM_TIMEOUT", 60, &errs)) * time.Second
	cfg.LogLevel = src.getLevel("LOG_LEVEL", slog.LevelInfo, &errs)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(cfg.PersistDir, 0755); err != nil {
		return Config{}, fmt.Errorf("failed to create persist directory: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads the nearest .env file, searching upward from the working directory.
// Variables already present in the environment are not overridden.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// readOverlay parses a flat YAML mapping of configuration keys to scalar values.
func readOverlay(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			out[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return out, nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func validate(cfg Config) error {
	err := structValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint (value %v)", envName(fe.StructField()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// envName maps struct fields back to the variable a user would set.
func envName(field string) string {
	if name, ok := fieldEnv[field]; ok {
		return name
	}
	return field
}

var fieldEnv = map[string]string{
	"Seed":             "SEED",
	"PersistDir":       "PERSIST_DIR",
	"ContextDir":       "CONTEXT_DIR",
	"ChunkSize":        "CHUNK_SIZE",
	"ChunkOverlap":     "CHUNK_OVERLAP",
	"EmbedBatchSize":   "EMBED_BATCH_SIZE",
	"EmbeddingBackend": "EMBEDDING_BACKEND",
	"EmbeddingModel":   "EMB_MODEL",
	"EmbeddingBaseURL": "EMBEDDING_BASE_URL",
	"EmbeddingDim":     "EMBEDDING_DIM",
	"TopK":             "TOP_K",
	"MinRelevance":     "MIN_RELEVANCE",
	"MaxAnswerChars":   "MAX_ANSWER_CHARS",
	"RefusalText":      "REFUSAL_TEXT",
	"LLMBaseURL":       "OPENAI_API_BASE",
	"LLMModelName":     "LLM_MODEL_NAME",
	"LLMTemperature":   "LLM_TEMPERATURE",
	"LLMMaxTokens":     "LLM_MAX_TOKENS",
	"LLMTimeout":       "LLM_TIMEOUT",
	"VectorBackend":    "VECTOR_BACKEND",
	"QdrantURL":        "QDRANT_URL",
	"QdrantCollection": "QDRANT_COLLECTION",
	"Port":             "PORT",
	"LogFormat":        "LOG_FORMAT",
}

// source resolves a key from the environment first, then the YAML overlay.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value, true
	}
	if value, ok := s.file[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	return "", false
}

func (s source) getString(key, defaultValue string) string {
	if value, ok := s.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (s source) getInt(key string, defaultValue int, errs *[]error) int {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid integer: %w", key, err))
		return defaultValue
	}
	return n
}

func (s source) getInt64(key string, defaultValue int64, errs *[]error) int64 {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid integer: %w", key, err))
		return defaultValue
	}
	return n
}

func (s source) getFloat(key string, defaultValue float64, errs *[]error) float64 {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid number: %w", key, err))
		return defaultValue
	}
	return f
}

func (s source) getBool(key string, defaultValue bool, errs *[]error) bool {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	*errs = append(*errs, fmt.Errorf("%s must be a boolean, got %q", key, value))
	return defaultValue
}

func (s source) getLevel(key string, defaultValue slog.Level, errs *[]error) slog.Level {
	value, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(value)); err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be one of debug, info, warn, error: %w", key, err))
		return defaultValue
	}
	return lvl
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultEmbeddingModel(backend string) string {
	if backend == "hashing" {
		return DefaultHashingModel
	}
	return DefaultRemoteModel
}
