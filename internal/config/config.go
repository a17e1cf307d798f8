package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Encoding EncodingConfig
	Upload   UploadConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	ViewTTL  time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	RawBucket       string
	ProcessedBucket string
	Region          string
	UseSSL          bool
	PresignedExpiry time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// EncodingConfig holds the transcoding worker configuration
type EncodingConfig struct {
	FFmpegPath             string
	TempDir                string
	BitratesKbps           []int
	SegmentDurationSeconds int
	Codec                  string
	Timeout                time.Duration
	ProcessedPrefix        string
	ManifestName           string
}

// UploadConfig holds ingestion validation configuration
type UploadConfig struct {
	FFprobePath        string
	MinDurationSeconds int
	MaxDurationSeconds int
	MaxFileSizeBytes   int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Port int
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations that would produce undefined encoder
// behavior before any component is constructed with them.
func (c *Config) Validate() error {
	if len(c.Encoding.BitratesKbps) == 0 {
		return fmt.Errorf("encoding.bitratesKbps must not be empty")
	}
	for _, b := range c.Encoding.BitratesKbps {
		if b <= 0 {
			return fmt.Errorf("encoding.bitratesKbps must be positive, got %d", b)
		}
	}
	if c.Encoding.SegmentDurationSeconds <= 0 {
		return fmt.Errorf("encoding.segmentDurationSeconds must be positive, got %d", c.Encoding.SegmentDurationSeconds)
	}
	if c.Encoding.Timeout <= 0 {
		return fmt.Errorf("encoding.timeout must be positive, got %v", c.Encoding.Timeout)
	}
	if c.Upload.MinDurationSeconds < 0 || c.Upload.MaxDurationSeconds <= c.Upload.MinDurationSeconds {
		return fmt.Errorf("upload duration bounds are invalid: min=%d max=%d",
			c.Upload.MinDurationSeconds, c.Upload.MaxDurationSeconds)
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "audio_streaming")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.viewTTL", "30s")

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.rawBucket", "raw-audio-files")
	viper.SetDefault("storage.processedBucket", "processed-audio-files")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)
	viper.SetDefault("storage.presignedExpiry", "1h")

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Encoding defaults
	viper.SetDefault("encoding.ffmpegPath", "ffmpeg")
	viper.SetDefault("encoding.tempDir", "")
	viper.SetDefault("encoding.bitratesKbps", []int{64, 128})
	viper.SetDefault("encoding.segmentDurationSeconds", 4)
	viper.SetDefault("encoding.codec", "libopus")
	viper.SetDefault("encoding.timeout", "5m")
	viper.SetDefault("encoding.processedPrefix", "processed-audio")
	viper.SetDefault("encoding.manifestName", "manifest.mpd")

	// Upload defaults
	viper.SetDefault("upload.ffprobePath", "ffprobe")
	viper.SetDefault("upload.minDurationSeconds", 1)
	viper.SetDefault("upload.maxDurationSeconds", 7200)
	viper.SetDefault("upload.maxFileSizeBytes", 500*1024*1024)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.port", 9091)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
}
