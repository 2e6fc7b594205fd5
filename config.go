package approval

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/viant/approval/internal/logging"
	"github.com/viant/approval/model/graph"
	"github.com/viant/approval/service/executor"
	"github.com/viant/approval/service/messaging/memory"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFS       = "fs"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config is a serialisable representation of the engine configuration. It can
// be populated from JSON, YAML or environment variables; zero sections take
// their package defaults.
type Config struct {
	Executor  executor.Config `json:"executor" yaml:"executor" mapstructure:"executor"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	// Definitions, Documents and Directory are afs locations; empty keeps them in memory.
	Definitions LocationConfig `json:"definitions" yaml:"definitions" mapstructure:"definitions"`
	Documents   LocationConfig `json:"documents" yaml:"documents" mapstructure:"documents"`
	Directory   LocationConfig `json:"directory" yaml:"directory" mapstructure:"directory"`
	Events      EventsConfig   `json:"events" yaml:"events" mapstructure:"events"`
	Log         logging.Config `json:"log" yaml:"log" mapstructure:"log"`
	Tracing     TracingConfig  `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

type SchedulerConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Spec      string `json:"spec" yaml:"spec" mapstructure:"spec"`
	BatchSize int    `json:"batchSize" yaml:"batchSize" mapstructure:"batchSize"`
}

// StoreConfig selects the instance store. URL is the fs base location or the
// mongo URI; DSN is the postgres connection string. Both accept ${env.NAME}.
type StoreConfig struct {
	Driver     string `json:"driver" yaml:"driver" mapstructure:"driver"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty" mapstructure:"database"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty" mapstructure:"collection"`
	DSN        string `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`
}

type LocationConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
}

type EventsConfig struct {
	Buffer     int           `json:"buffer" yaml:"buffer" mapstructure:"buffer"`
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries" mapstructure:"maxRetries"`
	RetryDelay time.Duration `json:"retryDelay" yaml:"retryDelay" mapstructure:"retryDelay"`
}

type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName    string `json:"serviceName" yaml:"serviceName" mapstructure:"serviceName"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty" mapstructure:"serviceVersion"`
	// Output is a file path; empty writes spans to stdout.
	Output string `json:"output,omitempty" yaml:"output,omitempty" mapstructure:"output"`
}

// DefaultConfig returns the engine defaults. Callers may modify the returned
// struct before passing it to WithConfig.
func DefaultConfig() *Config {
	queue := memory.DefaultConfig()
	return &Config{
		Executor:  executor.DefaultConfig(),
		Scheduler: SchedulerConfig{Enabled: true, Spec: "@every 1m", BatchSize: 100},
		Store:     StoreConfig{Driver: DriverMemory, Database: "approval", Collection: "workflow_instances"},
		Events:    EventsConfig{Buffer: queue.Buffer, MaxRetries: queue.MaxRetries, RetryDelay: queue.RetryDelay},
		Log:       logging.DefaultConfig(),
		Tracing:   TracingConfig{ServiceName: "approval"},
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var result *multierror.Error
	if c.Executor.MaxRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("executor.maxRetries must be >= 0"))
	}
	switch c.Executor.DefaultTimeoutAction {
	case "", graph.TimeoutActionNone, graph.TimeoutActionApprove, graph.TimeoutActionReject, graph.TimeoutActionEscalate:
	default:
		result = multierror.Append(result, fmt.Errorf("executor.defaultTimeoutAction %q is not supported", c.Executor.DefaultTimeoutAction))
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
			result = multierror.Append(result, fmt.Errorf("scheduler.spec: %w", err))
		}
	}
	if c.Scheduler.BatchSize < 0 {
		result = multierror.Append(result, fmt.Errorf("scheduler.batchSize must be >= 0"))
	}
	switch c.Store.Driver {
	case "", DriverMemory:
	case DriverFS:
		if c.Store.URL == "" {
			result = multierror.Append(result, fmt.Errorf("store.url is required for the fs driver"))
		}
	case DriverMongo:
		if c.Store.URL == "" || c.Store.Database == "" || c.Store.Collection == "" {
			result = multierror.Append(result, fmt.Errorf("store.url, store.database and store.collection are required for the mongo driver"))
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("store.dsn is required for the postgres driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Events.Buffer < 0 {
		result = multierror.Append(result, fmt.Errorf("events.buffer must be >= 0"))
	}
	return result.ErrorOrNil()
}
