package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port             string
	CORSAllowOrigin  []string
	Env              string
	DatabaseURL      string
	UploadDir        string
	LLMProvider      string
	OpenAIAPIKey     string
	OpenAIModel      string
	AnthropicAPIKey  string
	AnthropicModel   string
	MaxContentChars  int
	MaxPubMedResults int
	NCBIEmail        string
	NCBIAPIKey       string
	Pdftoppm         string
	Tesseract        string
	OCRDPI           int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:              env,
		DatabaseURL:      dbURL,
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),
		LLMProvider:      normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		MaxContentChars:  getEnvInt("MAX_CONTENT_CHARS", 100000),
		MaxPubMedResults: getEnvInt("MAX_PUBMED_RESULTS", 400),
		NCBIEmail:        getEnv("NCBI_EMAIL", "user@example.com"),
		NCBIAPIKey:       os.Getenv("NCBI_API_KEY"),
		Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
		Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
		OCRDPI:           getEnvInt("OCR_DPI", 300),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		log.Printf("ignoring invalid %s=%q", key, raw)
		return def
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "anthropic", "claude":
		return "anthropic"
	default:
		return "openai"
	}
}
