package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ErrMissingCredentials is returned when no reasoning-service API key is set.
var ErrMissingCredentials = errors.New("config: GEMINI_API_KEY or GOOGLE_API_KEY is required")

// Config holds everything the server needs at startup.
type Config struct {
	HTTPPort string
	APIKey   string

	RouterModel      string
	AnswerModel      string
	ExplanationModel string
	GeneralModel     string
	EvaluatorModel   string

	LLMCallTimeout   time.Duration
	IndexCallTimeout time.Duration

	DocumentsDir    string
	SnippetTopK     int
	PageTopK        int
	DefaultLanguage string
	PoliciesFile    string

	SessionMaxHistory int

	MongoEnabled bool
	MongoURI     string
	MongoDB      string
}

// LoadEnv loads environment variables from local .env files if present.
func LoadEnv(logger *logrus.Logger) {
	files := []string{".env", ".env.dev"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
		return
	}
	logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
}

// Load reads the configuration from the environment. It fails fast when
// credentials are missing.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          GetEnv("HTTP_PORT", "8080"),
		APIKey:            GetEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		RouterModel:       GetEnv("ROUTER_MODEL", "gemini-2.5-flash"),
		AnswerModel:       GetEnv("ANSWER_MODEL", "gemini-2.5-flash"),
		ExplanationModel:  GetEnv("EXPLANATION_MODEL", "gemini-2.5-pro"),
		GeneralModel:      GetEnv("GENERAL_MODEL", "gemini-2.5-flash"),
		EvaluatorModel:    GetEnv("EVALUATOR_MODEL", "gemini-2.5-flash"),
		LLMCallTimeout:    GetEnvDuration("LLM_CALL_TIMEOUT", 60*time.Second),
		IndexCallTimeout:  GetEnvDuration("INDEX_CALL_TIMEOUT", 15*time.Second),
		DocumentsDir:      GetEnv("DOCUMENTS_DIR", "./data/collections"),
		SnippetTopK:       GetEnvInt("SNIPPET_TOP_K", 3),
		PageTopK:          GetEnvInt("PAGE_TOP_K", 5),
		DefaultLanguage:   GetEnv("DEFAULT_LANGUAGE", "en"),
		PoliciesFile:      GetEnv("POLICIES_FILE", ""),
		SessionMaxHistory: GetEnvInt("SESSION_MAX_HISTORY", 50),
		MongoEnabled:      GetEnvBool("MONGODB_ENABLED", true),
		MongoURI:          GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:           GetEnv("MONGODB_DB", "tutor"),
	}

	if cfg.APIKey == "" {
		return Config{}, ErrMissingCredentials
	}

	return cfg, nil
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration parses values like "30s" or "2m".
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
