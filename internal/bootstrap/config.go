// Package bootstrap wires the platform/domain/service/adapter layers into a
// runnable server or worker process, the way
// components/crm/internal/bootstrap/config.go wires midaz's CRM service,
// generalized from its lib-commons-based env loader to caarlos0/env/v11 (see
// DESIGN.md for why lib-commons itself isn't in this module's dependency
// surface).
package bootstrap

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the top level configuration for both cmd/server and cmd/worker.
type Config struct {
	EnvName       string `env:"ENV_NAME" envDefault:"development"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	PostgresConnectionString string `env:"POSTGRES_CONNECTION_STRING,required"`
	MigrationsPath           string `env:"MIGRATIONS_PATH" envDefault:"migrations"`

	ObjectStoreEndpoint     string        `env:"OBJECT_STORE_ENDPOINT"`
	ObjectStoreAccessKey    string        `env:"OBJECT_STORE_ACCESS_KEY"`
	ObjectStoreSecretKey    string        `env:"OBJECT_STORE_SECRET_KEY"`
	ObjectStoreBucket       string        `env:"OBJECT_STORE_BUCKET,required"`
	ObjectStoreRegion       string        `env:"OBJECT_STORE_REGION" envDefault:"us-east-1"`
	ObjectStoreUsePathStyle bool          `env:"OBJECT_STORE_USE_PATH_STYLE" envDefault:"true"`
	ObjectStorePartTTL      time.Duration `env:"OBJECT_STORE_PRESIGN_PART_TTL" envDefault:"15m"`

	BootstrapToken    string `env:"BOOTSTRAP_TOKEN"`
	BootstrapTenantID string `env:"BOOTSTRAP_TENANT_ID"`

	OIDCIssuer         string        `env:"OIDC_ISSUER"`
	OIDCAudience       string        `env:"OIDC_AUDIENCE"`
	OIDCHS256Secret    string        `env:"OIDC_HS256_SECRET"`
	OIDCJWKSURI        string        `env:"OIDC_JWKS_URI"`
	OIDCJWKSRefreshTTL time.Duration `env:"OIDC_JWKS_REFRESH_TTL" envDefault:"1h"`
	RedisAddress       string        `env:"REDIS_ADDRESS"`

	SAMLEnabled      bool          `env:"SAML_ENABLED" envDefault:"false"`
	SAMLIdPIssuer    string        `env:"SAML_IDP_ISSUER"`
	SAMLSPAudience   string        `env:"SAML_SP_AUDIENCE"`
	SAMLIdPCertPath  string        `env:"SAML_IDP_CERT_PATH"`
	SAMLACSURL       string        `env:"SAML_ACS_URL"`
	SAMLIssuedPATTTL time.Duration `env:"SAML_ISSUED_PAT_TTL" envDefault:"15m"`

	UploadSessionTTL     time.Duration `env:"UPLOAD_SESSION_TTL" envDefault:"1h"`
	PolicyTimeoutMS      int64         `env:"POLICY_TIMEOUT_MS" envDefault:"5000"`
	OutboxProducerPeriod time.Duration `env:"OUTBOX_PRODUCER_INTERVAL" envDefault:"5s"`
	OutboxConsumerPeriod time.Duration `env:"OUTBOX_CONSUMER_INTERVAL" envDefault:"5s"`
	OutboxBatchSize      int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	AMQPURL          string `env:"AMQP_URL"`
	AMQPExchange     string `env:"AMQP_EXCHANGE" envDefault:"artifortress.outbox"`

	GCInterval              time.Duration `env:"GC_INTERVAL" envDefault:"1h"`
	GCRetentionGraceHours   int           `env:"GC_RETENTION_GRACE_HOURS" envDefault:"24"`
	GCBatchSize             int           `env:"GC_BATCH_SIZE" envDefault:"100"`
}

// LoadConfig reads a .env file if present (ignored if absent, matching the
// teacher's local-dev convenience) and parses process env into a Config.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
