package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type App struct {
	Port            uint16        `env:"APP_PORT" default:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" default:"10s"`
	Env             string        `env:"APP_ENV" default:"PROD"`
}

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"32"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"16"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"1m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

const (
	StrategySerial = "serial"
	StrategyBatch  = "batch"

	KernelArrow      = "arrow"
	KernelParallel   = "parallel"
	KernelSequential = "sequential"

	SinkLog      = "log"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
)

// Queue capacity profiles. The batch executor sustains far higher throughput,
// so it gets the larger buffer.
const (
	SerialQueueCapacity = 10_000
	BatchQueueCapacity  = 100_000
)

type Engine struct {
	Strategy         string        `env:"ENGINE_STRATEGY" default:"serial"`
	QueueCapacity    int           `env:"ENGINE_QUEUE_CAPACITY" default:"0"`
	Workers          int           `env:"ENGINE_WORKERS" default:"20"`
	PopTimeout       time.Duration `env:"ENGINE_POP_TIMEOUT" default:"1s"`
	IdleDelay        time.Duration `env:"ENGINE_IDLE_DELAY" default:"100ms"`
	BatchSize        int           `env:"ENGINE_BATCH_SIZE" default:"10000"`
	BatchKernel      string        `env:"ENGINE_BATCH_KERNEL" default:"arrow"`
	RetryMaxAttempts int           `env:"ENGINE_RETRY_MAX_ATTEMPTS" default:"5"`
	RetryBaseDelay   time.Duration `env:"ENGINE_RETRY_BASE_DELAY" default:"200ms"`
	SamplerInterval  time.Duration `env:"ENGINE_SAMPLER_INTERVAL" default:"1s"`
}

type DeadLetter struct {
	Sink         string   `env:"DEADLETTER_SINK" default:"postgres"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" default:""`
	KafkaTopic   string   `env:"KAFKA_DEADLETTER_TOPIC" default:"ledger.deadletters"`
}

var ErrInvalidConfig = errors.New("invalid config")

// Capacity resolves the queue capacity, falling back to the strategy profile.
func (e Engine) Capacity() int {
	if e.QueueCapacity > 0 {
		return e.QueueCapacity
	}

	if e.Strategy == StrategyBatch {
		return BatchQueueCapacity
	}

	return SerialQueueCapacity
}

//nolint:cyclop
func (e Engine) Validate() error {
	switch e.Strategy {
	case StrategySerial, StrategyBatch:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, e.Strategy)
	}

	switch e.BatchKernel {
	case KernelArrow, KernelParallel, KernelSequential:
	default:
		return fmt.Errorf("%w: unknown batch kernel %q", ErrInvalidConfig, e.BatchKernel)
	}

	if e.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity must not be negative", ErrInvalidConfig)
	}

	if e.Workers <= 0 || e.BatchSize <= 0 || e.RetryMaxAttempts <= 0 {
		return fmt.Errorf("%w: workers, batch size and retry attempts must be positive", ErrInvalidConfig)
	}

	if e.PopTimeout <= 0 || e.IdleDelay <= 0 || e.SamplerInterval <= 0 || e.RetryBaseDelay < 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}

	return nil
}

func (d DeadLetter) Validate() error {
	switch d.Sink {
	case SinkLog, SinkPostgres:
		return nil
	case SinkKafka:
		if len(d.KafkaBrokers) == 0 {
			return fmt.Errorf("%w: kafka sink needs KAFKA_BROKERS", ErrInvalidConfig)
		}

		if d.KafkaTopic == "" {
			return fmt.Errorf("%w: kafka sink needs a topic", ErrInvalidConfig)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown dead-letter sink %q", ErrInvalidConfig, d.Sink)
	}
}
