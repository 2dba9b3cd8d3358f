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

package sigil

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/edulith/sigil/directory"
	"github.com/edulith/sigil/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	ledgerClient     ledger.Client
	directoryEntries map[string]directory.Entry
	dataDir          string
	apiListenAddress string
	priceRatio       float64
	costBuffer       float64
	sweepInterval    time.Duration
	recheckInterval  time.Duration
	checkTimeout     time.Duration
	shutdownTimeout  time.Duration
	tracing          bool
	tracingStdout    bool
}

func (e *Engine) configValidate() error {
	if e.config.ledgerClient == nil {
		return errors.New("no ledger client defined")
	}
	if e.config.priceRatio < 0 || e.config.priceRatio > 1 {
		return errors.New("price ratio must be between 0 and 1")
	}
	if e.config.costBuffer < 0 {
		return errors.New("cost buffer must not be negative")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Engine config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new engine config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output.
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithDataDir specifies the persistent data directory. An empty value
// uses in-memory storage.
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithLedgerClient specifies the ledger client to use
func WithLedgerClient(client ledger.Client) ConfigOptionFunc {
	return func(c *Config) {
		c.ledgerClient = client
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer for metrics
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDirectory specifies the subject display metadata entries
func WithDirectory(entries map[string]directory.Entry) ConfigOptionFunc {
	return func(c *Config) {
		c.directoryEntries = entries
	}
}

// WithPriceRatio specifies the fraction of the network gas price to
// bid. Zero selects the default.
func WithPriceRatio(ratio float64) ConfigOptionFunc {
	return func(c *Config) {
		c.priceRatio = ratio
	}
}

// WithCostBuffer specifies the safety margin applied to the estimated
// cost before the balance check. Zero selects the default.
func WithCostBuffer(buffer float64) ConfigOptionFunc {
	return func(c *Config) {
		c.costBuffer = buffer
	}
}

// WithSweepInterval specifies how often pending records are checked
// against the ledger
func WithSweepInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.sweepInterval = interval
	}
}

// WithRecheckInterval specifies the focused polling interval for
// fresh submissions
func WithRecheckInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.recheckInterval = interval
	}
}

// WithCheckTimeout specifies the timeout for a single receipt lookup
func WithCheckTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.checkTimeout = timeout
	}
}

// WithApiListenAddress specifies the REST API listen address. An
// empty value disables the API server.
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithTracing enables tracing
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout instead of OTLP-over-HTTP
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
