package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/userbase-api/shared/mailer"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

// UserServiceConfig holds the configuration of the user service.
type UserServiceConfig struct {
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Mongo    MongoConfig    `envPrefix:"MONGO_"`
	Password PasswordConfig `envPrefix:"PASSWORD_"`
	Token    TokenConfig    `envPrefix:"TOKEN_"`

	MailEnabled         bool                `env:"MAIL_ENABLED"           envDefault:"false"`
	SMTP                mailer.MailerConfig `envPrefix:"SMTP_"`
	AppPasswordResetURL string              `env:"APP_PASSWORD_RESET_URL" envDefault:"http://localhost:3000/reset-password"`
	AppEmailVerifyURL   string              `env:"APP_EMAIL_VERIFY_URL"   envDefault:"http://localhost:3000/verify-email"`
}

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI            string        `env:"URI"             envDefault:"mongodb://localhost:27017"`
	Database       string        `env:"DATABASE"        envDefault:"userbase"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
}

// PasswordConfig holds the password hashing work factor.
type PasswordConfig struct {
	Algorithm       string `env:"ALGORITHM"        envDefault:"bcrypt"`
	BcryptCost      int    `env:"BCRYPT_COST"      envDefault:"12"`
	Argon2TimeCost  uint32 `env:"ARGON2_TIME_COST"  envDefault:"3"`
	Argon2MemoryKiB uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
}

// TokenConfig holds the single-use token and session token settings.
type TokenConfig struct {
	TTL           time.Duration `env:"TTL"            envDefault:"600s"`
	SessionSecret string        `env:"SESSION_SECRET"`
	Issuer        string        `env:"ISSUER"         envDefault:"userbase"`
	Audience      string        `env:"AUDIENCE"       envDefault:"userbase"`
}

// Load parses the configuration from environment variables and validates it.
func Load() (*UserServiceConfig, error) {
	cfg, err := env.ParseAs[UserServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Security returns the credential manager settings.
func (c PasswordConfig) Security() security.PasswordConfig {
	return security.PasswordConfig{
		Algorithm:       security.PasswordAlgorithm(c.Algorithm),
		BcryptCost:      c.BcryptCost,
		Argon2TimeCost:  c.Argon2TimeCost,
		Argon2MemoryKiB: c.Argon2MemoryKiB,
	}
}

func (c *UserServiceConfig) validate() error {
	if c.Mongo.URI == "" {
		return errors.New("missing MONGO_URI environment variable")
	}
	if c.Mongo.Database == "" {
		return errors.New("missing MONGO_DATABASE environment variable")
	}
	if c.Token.TTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.Password.Algorithm == string(security.AlgorithmBcrypt) && c.Password.BcryptCost < security.MinBcryptCost {
		return fmt.Errorf("PASSWORD_BCRYPT_COST must be at least %d", security.MinBcryptCost)
	}
	if c.MailEnabled {
		if err := c.SMTP.Validate(); err != nil {
			return err
		}
	}

	return nil
}
