// Copyright 2025 Edulith Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "sigil.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// SubjectConfig holds display metadata for a subject
type SubjectConfig struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type Config struct {
	// Ledger connection
	LedgerEndpoint  string `yaml:"ledgerEndpoint"  envconfig:"SIGIL_LEDGER_ENDPOINT"`
	ContractAddress string `yaml:"contractAddress" envconfig:"SIGIL_CONTRACT_ADDRESS"`
	PrivateKey      string `yaml:"privateKey"      envconfig:"SIGIL_PRIVATE_KEY"`
	ChainId         int64  `yaml:"chainId"         envconfig:"SIGIL_CHAIN_ID"`

	DatabasePath     string `yaml:"databasePath"                    split_words:"true"`
	BindAddr         string `yaml:"bindAddr"                        split_words:"true"`
	ApiListenAddress string `yaml:"apiListenAddress"                split_words:"true"`
	MetricsPort      uint   `yaml:"metricsPort"                     split_words:"true"`

	// Fee policy
	PriceRatio float64 `yaml:"priceRatio" split_words:"true"`
	CostBuffer float64 `yaml:"costBuffer" split_words:"true"`

	// Reconciliation timing, as duration strings
	SweepInterval   string `yaml:"sweepInterval"   split_words:"true"`
	RecheckInterval string `yaml:"recheckInterval" split_words:"true"`
	CheckTimeout    string `yaml:"checkTimeout"    split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`

	Tracing       bool `yaml:"tracing"       split_words:"true"`
	TracingStdout bool `yaml:"tracingStdout" split_words:"true"`

	// Subject display metadata, keyed by subject ID
	Subjects map[string]SubjectConfig `yaml:"subjects"`
}

var globalConfig = &Config{
	LedgerEndpoint:   "http://localhost:8545",
	ChainId:          11155111,
	DatabasePath:     ".sigil",
	BindAddr:         "0.0.0.0",
	ApiListenAddress: ":3000",
	MetricsPort:      12798,
	ShutdownTimeout:  DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.sigil/sigil.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".sigil", "sigil.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/sigil/sigil.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/sigil/sigil.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("sigil", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
