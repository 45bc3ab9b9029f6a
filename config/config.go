package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, loaded from the environment
// after godotenv has read the .env file.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"production"`
	MongoURI string `env:"MONGO_URI"`
	DBName   string `env:"DB_NAME" envDefault:"refwise"`

	JWTSecret string `env:"JWT_SECRET"`

	// SiteURL is the public site referral links point at.
	SiteURL string `env:"SITE_URL" envDefault:"https://refwise.app"`

	// DefaultProfileID is the profile used by the self-serve
	// become-a-referrer flow when no profile is named explicitly.
	DefaultProfileID string `env:"DEFAULT_PROFILE_ID"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`

	KafkaBootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS"`
	KafkaGroupID          string `env:"KAFKA_GROUP_ID" envDefault:"refwise_commission_core"`
	KafkaPaymentTopic     string `env:"KAFKA_PAYMENT_TOPIC" envDefault:"payment_events"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"2525"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	MailFrom string `env:"MAIL_FROM"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
