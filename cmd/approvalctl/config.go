package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/viant/approval"
)

const envPrefix = "APPROVAL"

// configKeys are bound to APPROVAL_* variables, for example store.url to
// APPROVAL_STORE_URL.
var configKeys = []string{
	"store.driver", "store.url", "store.database", "store.collection", "store.dsn",
	"definitions.url", "documents.url", "directory.url",
	"executor.maxRetries", "executor.retryInterval", "executor.defaultTimeoutAction",
	"scheduler.enabled", "scheduler.spec", "scheduler.batchSize",
	"log.level", "log.format", "log.file",
	"tracing.enabled", "tracing.serviceName", "tracing.output",
}

// loadConfig merges defaults, the optional config file and the environment.
func loadConfig(v *viper.Viper, configFile string) (*approval.Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}
	config := approval.DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return config, nil
}
