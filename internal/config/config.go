package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Chatbot  ChatbotConfig
	Memory   MemoryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	NatsEnabled        bool
	RedisURL           string
	TurnTopic          string // watermill topic carrying completed turns to the persistence consumer
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection         string
	EmbeddingDimension int
}

type AIConfig struct {
	LLMProvider       string // "ollama", "openai", "groq", "huggingface"
	LLMModel          string
	LLMBaseURL        string
	LLMAPIKey         string
	EmbeddingProvider string // "ollama" or "openai"
	EmbeddingModel    string
	EmbeddingBaseURL  string
	EmbeddingAPIKey   string
	EmbeddingCacheTTL time.Duration
}

type ChatbotConfig struct {
	DomainsFile         string
	DefaultDomain       string
	SimilarityThreshold float64
	MatchLimit          int
	PatternMinScore     float64
	HighConfidence      float64
	MediumConfidence    float64
	HighUrgencyTerms    []string
	HistoryWindow       int
	RetrievalTimeout    time.Duration
	ExtractionTimeout   time.Duration
	FollowUpTimeout     time.Duration
	GenerationTimeout   time.Duration
	Temperature         float64
}

type MemoryConfig struct {
	Backend            string // "memory" or "redis"
	TTL                time.Duration
	MaxRetries         int
	QuestionSimilarity float64
	RecentSearchWindow time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			NatsEnabled:        getEnvAsBool("NATS_ENABLED", true),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			TurnTopic:          getEnv("TURN_TOPIC_NAME", "CONVERSATION_TURN_COMPLETED"),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection:         getEnv("DB_CONNECTION_STRING", ""),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMAPIKey:         getEnv("LLM_API_KEY", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", "http://localhost:11434"),
			EmbeddingAPIKey:   getEnv("EMBEDDING_API_KEY", ""),
			EmbeddingCacheTTL: getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Chatbot: ChatbotConfig{
			DomainsFile:         getEnv("CHATBOT_DOMAINS_FILE", "configs/domains.yaml"),
			DefaultDomain:       getEnv("CHATBOT_DEFAULT_DOMAIN", "real-estate"),
			SimilarityThreshold: getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.75),
			MatchLimit:          getEnvAsInt("RAG_MATCH_LIMIT", 5),
			PatternMinScore:     getEnvAsFloat("RAG_PATTERN_MIN_SCORE", 0.7),
			HighConfidence:      getEnvAsFloat("RAG_HIGH_CONFIDENCE", 0.8),
			MediumConfidence:    getEnvAsFloat("RAG_MEDIUM_CONFIDENCE", 0.5),
			HighUrgencyTerms:    getEnvAsList("RAG_HIGH_URGENCY_TERMS", []string{"churn", "fraud"}),
			HistoryWindow:       getEnvAsInt("CHATBOT_HISTORY_WINDOW", 5),
			RetrievalTimeout:    getEnvAsDuration("RAG_TIMEOUT", 5*time.Second),
			ExtractionTimeout:   getEnvAsDuration("EXTRACTION_TIMEOUT", 10*time.Second),
			FollowUpTimeout:     getEnvAsDuration("FOLLOWUP_TIMEOUT", 10*time.Second),
			GenerationTimeout:   getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),
			Temperature:         getEnvAsFloat("CHATBOT_TEMPERATURE", 0.7),
		},
		Memory: MemoryConfig{
			Backend:            getEnv("MEMORY_BACKEND", "memory"),
			TTL:                getEnvAsDuration("MEMORY_TTL", 24*time.Hour),
			MaxRetries:         getEnvAsInt("MEMORY_MAX_RETRIES", 5),
			QuestionSimilarity: getEnvAsFloat("MEMORY_QUESTION_SIMILARITY", 0.7),
			RecentSearchWindow: getEnvAsDuration("MEMORY_RECENT_SEARCH_WINDOW", 5*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings such as "5s" or "24h".
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
