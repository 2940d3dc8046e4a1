package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/healthcare-records/pkg/validator"
)

// EnvPrefix namespaces the environment overrides, e.g. HEALTHCARE_RPC_URL.
const EnvPrefix = "healthcare"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Wallet       WalletConfig       `mapstructure:"wallet"`
	Contract     ContractConfig     `mapstructure:"contract"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Events       EventsConfig       `mapstructure:"events"`
	Transactions TransactionsConfig `mapstructure:"transactions"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Log          LogConfig          `mapstructure:"log"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	CORS         CORSConfig         `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode            string `mapstructure:"mode" validate:"oneof=debug release test"`
	TimeoutSeconds  int    `mapstructure:"timeoutSeconds" validate:"min=1"`
	ShutdownSeconds int    `mapstructure:"shutdownSeconds" validate:"min=1"`
}

type WalletConfig struct {
	RPCURL             string `mapstructure:"rpc_url"`
	PrivateKey         string `mapstructure:"private_key"`
	KeystoreFile       string `mapstructure:"keystore_file"`
	KeystorePassphrase string `mapstructure:"keystore_passphrase"`
	ChainID            int64  `mapstructure:"chain_id" validate:"min=0"`
}

type ContractConfig struct {
	Address                string        `mapstructure:"address" validate:"required,eth_addr"`
	GasLimit               uint64        `mapstructure:"gas_limit" validate:"min=21000"`
	PlaceholderPatientName string        `mapstructure:"placeholder_patient_name" validate:"required"`
	CallTimeout            time.Duration `mapstructure:"call_timeout" validate:"min=0"`
	ConfirmTimeout         time.Duration `mapstructure:"confirm_timeout" validate:"min=0"`
}

type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	PoolSize         int           `mapstructure:"pool_size"`
	MaxRetries       int           `mapstructure:"max_retries"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type EventsConfig struct {
	QueueSize      int           `mapstructure:"queue_size" validate:"min=1"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" validate:"gt=0"`
}

type TransactionsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// envOverrides are secrets and deployment values that usually come from the environment.
type envOverrides struct {
	RPCURL             string `envconfig:"RPC_URL"`
	PrivateKey         string `envconfig:"PRIVATE_KEY"`
	KeystoreFile       string `envconfig:"KEYSTORE_FILE"`
	KeystorePassphrase string `envconfig:"KEYSTORE_PASSPHRASE"`
	ChainID            int64  `envconfig:"CHAIN_ID"`
	ContractAddress    string `envconfig:"CONTRACT_ADDRESS"`
	RedisURL           string `envconfig:"REDIS_URL"`
	JWTSecret          string `envconfig:"JWT_SECRET"`
	Port               int    `envconfig:"PORT"`
	LogLevel           string `envconfig:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeoutSeconds", 120)
	v.SetDefault("server.shutdownSeconds", 10)

	v.SetDefault("contract.address", "0x7E40D49db1460c2D1aCB4a3334f55A0245219cA1")
	v.SetDefault("contract.gas_limit", 5000000)
	v.SetDefault("contract.placeholder_patient_name", "Alice")
	v.SetDefault("contract.call_timeout", "30s")
	v.SetDefault("contract.confirm_timeout", "0s")

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.failure_threshold", 5)
	v.SetDefault("redis.open_timeout", "30s")

	v.SetDefault("events.queue_size", 256)
	v.SetDefault("events.publish_timeout", "5s")

	v.SetDefault("transactions.ttl", "24h")
	v.SetDefault("transactions.cleanup_interval", "1h")

	v.SetDefault("jwt.issuer", "healthcare-records")

	v.SetDefault("log.level", "info")

	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// LoadConfig reads config.yaml and applies HEALTHCARE_* overrides.
// An explicit path must exist; otherwise a missing file means defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	override(&c.Wallet.RPCURL, env.RPCURL)
	override(&c.Wallet.PrivateKey, env.PrivateKey)
	override(&c.Wallet.KeystoreFile, env.KeystoreFile)
	override(&c.Wallet.KeystorePassphrase, env.KeystorePassphrase)
	override(&c.Contract.Address, env.ContractAddress)
	override(&c.Redis.URL, env.RedisURL)
	override(&c.JWT.Secret, env.JWTSecret)
	override(&c.Log.Level, env.LogLevel)
	if env.ChainID != 0 {
		c.Wallet.ChainID = env.ChainID
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	return nil
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func (c *Config) Validate() error {
	v := validator.New()
	for name, section := range map[string]interface{}{
		"server":     c.Server,
		"wallet":     c.Wallet,
		"contract":   c.Contract,
		"events":     c.Events,
		"rate_limit": c.RateLimit,
	} {
		if err := v.Validate(section); err != nil {
			return fmt.Errorf("invalid %s config: %w", name, err)
		}
	}
	return nil
}

func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownSeconds) * time.Second
}
