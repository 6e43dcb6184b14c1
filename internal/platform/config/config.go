package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable via AKASHIC_STORE_BACKEND.
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// Completion providers selectable via COMPLETION_PROVIDER.
const (
	CompletionOpenAI = "openai"
	CompletionGemini = "gemini"
)

// Payment providers selectable via PAYMENT_PROVIDER.
const (
	PaymentStripe = "stripe"
	PaymentSquare = "square"
)

// Config captures process-level configuration. Built once in main and passed
// down explicitly so components have init-time failure modes instead of
// deferred first-use failures.
type Config struct {
	Addr        string
	Environment string
	FrontendURL string

	StoreBackend      string
	PostgresURL       string
	FirestoreProject  string
	FirestoreDatabase string

	RedisURL string

	CompletionProvider string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	GeminiProject      string
	GeminiLocation     string
	GeminiModel        string

	PaymentProvider         string
	StripeSecretKey         string
	StripeWebhookSecret     string
	SquareAccessToken       string
	SquareLocationID        string
	SquareWebhookSignature  string
	PriceAmount             int
	PriceCurrency           string
	WebhookSkipVerification bool

	KafkaBrokers    []string
	AuditKafkaTopic string

	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:        getenv("AKASHIC_ADDR", ":8080"),
		Environment: getenv("ENVIRONMENT", "development"),
		FrontendURL: getenv("FRONTEND_URL", "http://localhost:3000"),

		StoreBackend:      getenv("AKASHIC_STORE_BACKEND", StoreMemory),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		FirestoreProject:  os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreDatabase: getenv("FIRESTORE_DATABASE", "(default)"),

		RedisURL: os.Getenv("REDIS_URL"),

		CompletionProvider: getenv("COMPLETION_PROVIDER", CompletionOpenAI),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:        getenv("OPENAI_MODEL", "gpt-4"),
		GeminiProject:      os.Getenv("GEMINI_PROJECT_ID"),
		GeminiLocation:     getenv("GEMINI_LOCATION", "us-central1"),
		GeminiModel:        getenv("GEMINI_MODEL", "gemini-2.5-flash"),

		PaymentProvider:        getenv("PAYMENT_PROVIDER", PaymentStripe),
		StripeSecretKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SquareAccessToken:      os.Getenv("SQUARE_ACCESS_TOKEN"),
		SquareLocationID:       os.Getenv("SQUARE_LOCATION_ID"),
		SquareWebhookSignature: os.Getenv("SQUARE_WEBHOOK_SIGNATURE_KEY"),
		PriceAmount:            getenvInt("DIAGNOSIS_PRICE_AMOUNT", 1000),
		PriceCurrency:          getenv("DIAGNOSIS_PRICE_CURRENCY", "jpy"),

		AuditKafkaTopic: getenv("AUDIT_KAFKA_TOPIC", "akashic.audit"),

		ShutdownTimeout: 10 * time.Second,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitComma(brokers)
	}

	// The bypass exists for local webhook testing only. It is refused outright
	// in production so it can never be reached with live credentials.
	if os.Getenv("PAYMENT_WEBHOOK_SKIP_VERIFY") == "true" && !cfg.IsProduction() {
		cfg.WebhookSkipVerification = true
	}

	return cfg
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations that would fail at first use.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres store backend")
		}
	case StoreFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore store backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	switch c.CompletionProvider {
	case CompletionOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai completion provider")
		}
	case CompletionGemini:
		if c.GeminiProject == "" {
			return fmt.Errorf("GEMINI_PROJECT_ID is required for the gemini completion provider")
		}
	default:
		return fmt.Errorf("unknown completion provider %q", c.CompletionProvider)
	}

	switch c.PaymentProvider {
	case PaymentStripe, PaymentSquare:
	default:
		return fmt.Errorf("unknown payment provider %q", c.PaymentProvider)
	}

	if c.IsProduction() && c.WebhookSkipVerification {
		return fmt.Errorf("webhook signature verification cannot be disabled in production")
	}

	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
