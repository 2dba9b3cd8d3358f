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

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os"
	"os/signal"
	"syscall"
	"time"

	sigil "github.com/edulith/sigil"
	"github.com/edulith/sigil/directory"
	"github.com/edulith/sigil/internal/config"
	"github.com/edulith/sigil/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "engine")

	// Parse shutdown timeout
	shutdownTimeout := 30 * time.Second // Default timeout
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}
	sweepInterval, err := parseOptionalDuration(cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("invalid sweep interval: %w", err)
	}
	recheckInterval, err := parseOptionalDuration(cfg.RecheckInterval)
	if err != nil {
		return fmt.Errorf("invalid recheck interval: %w", err)
	}
	checkTimeout, err := parseOptionalDuration(cfg.CheckTimeout)
	if err != nil {
		return fmt.Errorf("invalid check timeout: %w", err)
	}

	// Connect to the ledger
	ledgerClient, err := ledger.NewEthereumClient(&ledger.EthereumConfig{
		Endpoint:        cfg.LedgerEndpoint,
		ContractAddress: cfg.ContractAddress,
		PrivateKey:      cfg.PrivateKey,
		ChainId:         big.NewInt(cfg.ChainId),
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger client: %w", err)
	}

	// Build subject directory from config
	entries := make(map[string]directory.Entry, len(cfg.Subjects))
	for subjectId, subject := range cfg.Subjects {
		entries[subjectId] = directory.Entry{
			SubjectName:  subject.Name,
			CategoryName: subject.Category,
		}
	}

	e, err := sigil.New(
		sigil.NewConfig(
			sigil.WithLogger(logger),
			sigil.WithDataDir(cfg.DatabasePath),
			sigil.WithLedgerClient(ledgerClient),
			sigil.WithDirectory(entries),
			sigil.WithPriceRatio(cfg.PriceRatio),
			sigil.WithCostBuffer(cfg.CostBuffer),
			sigil.WithSweepInterval(sweepInterval),
			sigil.WithRecheckInterval(recheckInterval),
			sigil.WithCheckTimeout(checkTimeout),
			sigil.WithApiListenAddress(cfg.ApiListenAddress),
			sigil.WithShutdownTimeout(shutdownTimeout),
			sigil.WithTracing(cfg.Tracing),
			sigil.WithTracingStdout(cfg.TracingStdout),
			// Enable metrics with default prometheus registry
			sigil.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}
	// Metrics and debug listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component",
		"engine",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "engine",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run engine in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := e.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")

		// Shutdown metrics server
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}

		// Shutdown engine
		if err := e.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("engine stopped")
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				shutdownTimeout,
			)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
			if err := e.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("engine error", "error", err)
		signalCtxStop()

		// Shutdown engine resources
		if stopErr := e.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}

		// Cleanup on error
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics server shutdown error", "error", shutdownErr)
		}

		return err
	}
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
