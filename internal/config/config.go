package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Coach    CoachConfig    `mapstructure:"coach"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration. Tokens are issued by the
// app's auth collaborator; this service only needs the secret to verify them.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// OpenAIConfig points the coach at an OpenAI-compatible completion endpoint.
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CoachConfig carries the orchestrator tunables.
type CoachConfig struct {
	// MaxIterations caps the tool-calling loop; the circuit breaker against
	// runaway tool requests.
	MaxIterations int `mapstructure:"max_iterations"`
	// FlushInterval is the debounce window for streaming content appends.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// RunBudget bounds one whole orchestrator run wall-clock.
	RunBudget time.Duration `mapstructure:"run_budget"`
	// AppendRetries is how often a failed mid-stream append is retried with
	// the buffered text before being dropped.
	AppendRetries int `mapstructure:"append_retries"`
	// ChunkDelay paces simulated chunked delivery on the streaming fallback.
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	// Nested keys map to env vars, e.g. openai.api_key -> OPENAI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "fitcoach")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.request_timeout", "60s")
	viper.SetDefault("coach.max_iterations", 4)
	viper.SetDefault("coach.flush_interval", "200ms")
	viper.SetDefault("coach.run_budget", "3m")
	viper.SetDefault("coach.append_retries", 3)
	viper.SetDefault("coach.chunk_delay", "30ms")

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file is optional; env vars and defaults may be enough.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
