// Package config provides configuration loading and validation for asdelete.
// Supports YAML files with environment variable overrides.
package config

// Config holds everything that is not a positional argument of the CLI.
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Purge         PurgeConfig         `yaml:"purge"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Store backends.
const (
	BackendAerospike = "aerospike"
	BackendOxia      = "oxia"
)

type StoreConfig struct {
	Backend   string          `yaml:"backend" env:"ASDELETE_BACKEND"`
	Aerospike AerospikeConfig `yaml:"aerospike"`
	Oxia      OxiaConfig      `yaml:"oxia"`
}

type AerospikeConfig struct {
	User               string `yaml:"user" env:"ASDELETE_AEROSPIKE_USER"`
	Password           string `yaml:"password" env:"ASDELETE_AEROSPIKE_PASSWORD"`
	TimeoutMs          int64  `yaml:"timeoutMs" env:"ASDELETE_AEROSPIKE_TIMEOUT_MS"`
	SocketTimeoutMs    int64  `yaml:"socketTimeoutMs" env:"ASDELETE_AEROSPIKE_SOCKET_TIMEOUT_MS"`
	RecordsPerSecond   int    `yaml:"recordsPerSecond" env:"ASDELETE_AEROSPIKE_RECORDS_PER_SECOND"`
	MaxConcurrentNodes int    `yaml:"maxConcurrentNodes" env:"ASDELETE_AEROSPIKE_MAX_CONCURRENT_NODES"`
}

type OxiaConfig struct {
	RequestTimeoutMs int64 `yaml:"requestTimeoutMs" env:"ASDELETE_OXIA_REQUEST_TIMEOUT_MS"`
}

type PurgeConfig struct {
	// ProgressEvery is the matched-record interval between progress lines.
	ProgressEvery     int64  `yaml:"progressEvery" env:"ASDELETE_PROGRESS_EVERY"`
	StopOnDeleteError bool   `yaml:"stopOnDeleteError" env:"ASDELETE_STOP_ON_DELETE_ERROR"`
	// Schedule is a standard 5-field cron expression. Empty runs once.
	Schedule string `yaml:"schedule" env:"ASDELETE_SCHEDULE"`
}

type AuditConfig struct {
	S3    S3AuditConfig    `yaml:"s3"`
	Kafka KafkaAuditConfig `yaml:"kafka"`
}

type S3AuditConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ASDELETE_AUDIT_S3_ENABLED"`
	Endpoint     string `yaml:"endpoint" env:"ASDELETE_AUDIT_S3_ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"ASDELETE_AUDIT_S3_BUCKET"`
	Region       string `yaml:"region" env:"ASDELETE_AUDIT_S3_REGION"`
	AccessKey    string `yaml:"accessKey" env:"ASDELETE_AUDIT_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"ASDELETE_AUDIT_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"ASDELETE_AUDIT_S3_PATH_STYLE"`
	Prefix       string `yaml:"prefix" env:"ASDELETE_AUDIT_S3_PREFIX"`
	Compression  string `yaml:"compression" env:"ASDELETE_AUDIT_S3_COMPRESSION"`
	BatchSize    int    `yaml:"batchSize" env:"ASDELETE_AUDIT_S3_BATCH_SIZE"`
}

type KafkaAuditConfig struct {
	Enabled  bool     `yaml:"enabled" env:"ASDELETE_AUDIT_KAFKA_ENABLED"`
	Brokers  []string `yaml:"brokers" env:"ASDELETE_AUDIT_KAFKA_BROKERS"`
	Topic    string   `yaml:"topic" env:"ASDELETE_AUDIT_KAFKA_TOPIC"`
	ClientID string   `yaml:"clientId" env:"ASDELETE_AUDIT_KAFKA_CLIENT_ID"`
}

type ObservabilityConfig struct {
	// MetricsAddr enables the /metrics endpoint when set.
	MetricsAddr    string `yaml:"metricsAddr" env:"ASDELETE_METRICS_ADDR"`
	PushGatewayURL string `yaml:"pushGatewayUrl" env:"ASDELETE_PUSHGATEWAY_URL"`
	LogLevel       string `yaml:"logLevel" env:"ASDELETE_LOG_LEVEL"`
	LogFormat      string `yaml:"logFormat" env:"ASDELETE_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendAerospike,
			Aerospike: AerospikeConfig{
				TimeoutMs: 30000,
			},
			Oxia: OxiaConfig{
				RequestTimeoutMs: 30000,
			},
		},
		Purge: PurgeConfig{
			ProgressEvery: 10000,
		},
		Audit: AuditConfig{
			S3: S3AuditConfig{
				Region:      "us-east-1",
				Prefix:      "asdelete",
				Compression: "zstd",
				BatchSize:   10000,
			},
			Kafka: KafkaAuditConfig{
				Topic:    "asdelete-audit",
				ClientID: "asdelete",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}
