package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation failure of a single field.
type FieldError struct {
	// Field is the dotted YAML path, e.g. "audit.s3.bucket".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found by Validate.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "config: invalid configuration: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "config: invalid configuration (%d errors):", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

var (
	validCompression = []string{"none", "zstd", "lz4", "snappy"}
	validLogLevels   = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats  = []string{"text", "json"}
)

// Validate checks cross-field constraints and returns a ValidationError
// listing every problem, or nil.
func (c *Config) Validate() error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Store.Backend {
	case BackendAerospike, BackendOxia:
	default:
		add("store.backend", "must be %q or %q, got %q", BackendAerospike, BackendOxia, c.Store.Backend)
	}
	if c.Store.Aerospike.TimeoutMs < 0 {
		add("store.aerospike.timeoutMs", "must not be negative")
	}
	if c.Store.Aerospike.SocketTimeoutMs < 0 {
		add("store.aerospike.socketTimeoutMs", "must not be negative")
	}
	if c.Store.Aerospike.RecordsPerSecond < 0 {
		add("store.aerospike.recordsPerSecond", "must not be negative")
	}
	if c.Store.Aerospike.MaxConcurrentNodes < 0 {
		add("store.aerospike.maxConcurrentNodes", "must not be negative")
	}
	if c.Store.Oxia.RequestTimeoutMs < 0 {
		add("store.oxia.requestTimeoutMs", "must not be negative")
	}

	if c.Purge.ProgressEvery <= 0 {
		add("purge.progressEvery", "must be positive")
	}
	if c.Purge.Schedule != "" {
		if _, err := cron.ParseStandard(c.Purge.Schedule); err != nil {
			add("purge.schedule", "invalid cron expression: %v", err)
		}
	}

	s3 := c.Audit.S3
	if !slices.Contains(validCompression, s3.Compression) {
		add("audit.s3.compression", "must be one of %s", strings.Join(validCompression, ", "))
	}
	if s3.Enabled {
		if s3.Bucket == "" {
			add("audit.s3.bucket", "is required when the S3 audit sink is enabled")
		}
		if s3.BatchSize <= 0 {
			add("audit.s3.batchSize", "must be positive")
		}
	}

	kafka := c.Audit.Kafka
	if kafka.Enabled {
		if len(kafka.Brokers) == 0 {
			add("audit.kafka.brokers", "at least one broker is required when the Kafka audit sink is enabled")
		}
		if kafka.Topic == "" {
			add("audit.kafka.topic", "is required when the Kafka audit sink is enabled")
		}
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.Observability.LogLevel)) {
		add("observability.logLevel", "must be one of %s", strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.Observability.LogFormat)) {
		add("observability.logFormat", "must be one of %s", strings.Join(validLogFormats, ", "))
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
