package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Environment:        "development",
		StoreBackend:       StoreMemory,
		CompletionProvider: CompletionOpenAI,
		OpenAIAPIKey:       "sk-test",
		PaymentProvider:    PaymentStripe,
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts the development defaults", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("postgres backend requires a URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = StorePostgres
		assert.Error(t, cfg.Validate())

		cfg.PostgresURL = "postgres://localhost/akashic"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("firestore backend requires a project", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = StoreFirestore
		assert.Error(t, cfg.Validate())

		cfg.FirestoreProject = "my-project"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown backends are rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = "dynamo"
		assert.Error(t, cfg.Validate())
	})

	t.Run("openai provider requires an api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.OpenAIAPIKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("gemini provider requires a project", func(t *testing.T) {
		cfg := validConfig()
		cfg.CompletionProvider = CompletionGemini
		assert.Error(t, cfg.Validate())

		cfg.GeminiProject = "my-project"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown payment providers are rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.PaymentProvider = "paypal"
		assert.Error(t, cfg.Validate())
	})

	t.Run("skip-verify is refused in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.WebhookSkipVerification = true
		assert.NoError(t, cfg.Validate())

		cfg.Environment = "production"
		assert.Error(t, cfg.Validate())
	})
}

func TestFromEnvSkipVerifyGate(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SKIP_VERIFY", "true")

	t.Run("honored in development", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "development")
		cfg := FromEnv()
		assert.True(t, cfg.WebhookSkipVerification)
	})

	t.Run("ignored in production", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		cfg := FromEnv()
		assert.False(t, cfg.WebhookSkipVerification)
	})
}

func TestFromEnvKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")
	cfg := FromEnv()
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}
