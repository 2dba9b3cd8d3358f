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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edulith/sigil/api"
	"github.com/edulith/sigil/database"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/directory"
	"github.com/edulith/sigil/event"
	"github.com/edulith/sigil/issuer"
	"github.com/edulith/sigil/query"
	"github.com/edulith/sigil/reconciler"
)

// Engine ties together the certificate issuance pipeline: the local
// record store, the ledger client, the submission path, background
// reconciliation and the query surface.
type Engine struct {
	eventBus      *event.EventBus
	db            *database.Database
	issuer        *issuer.Issuer
	reconciler    *reconciler.Reconciler
	querySvc      *query.Service
	api           *api.Api
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Engine, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	e := &Engine{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	if err := e.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return e, nil
}

// EventBus returns the engine's event bus
func (e *Engine) EventBus() *event.EventBus {
	return e.eventBus
}

// Database returns the engine's database, or nil before Run
func (e *Engine) Database() *database.Database {
	return e.db
}

func (e *Engine) Run() error {
	// Configure tracing
	if e.config.tracing {
		if err := e.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:      e.config.dataDir,
		Logger:       e.config.logger,
		PromRegistry: e.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	e.db = db
	// Initialize issuer
	iss, err := issuer.New(&issuer.Config{
		Logger:       e.config.logger,
		Database:     e.db,
		LedgerClient: e.config.ledgerClient,
		EventBus:     e.eventBus,
		Directory: directory.NewStaticDirectory(
			e.config.directoryEntries,
		),
		PriceRatio: e.config.priceRatio,
		CostBuffer: e.config.costBuffer,
	})
	if err != nil {
		return fmt.Errorf("failed to load issuer: %w", err)
	}
	e.issuer = iss
	// Initialize query service
	querySvc, err := query.New(&query.Config{
		Logger:       e.config.logger,
		Database:     e.db,
		LedgerClient: e.config.ledgerClient,
	})
	if err != nil {
		return fmt.Errorf("failed to load query service: %w", err)
	}
	e.querySvc = querySvc
	// Start reconciler
	rec, err := reconciler.New(&reconciler.Config{
		Logger:          e.config.logger,
		Database:        e.db,
		LedgerClient:    e.config.ledgerClient,
		EventBus:        e.eventBus,
		PromRegistry:    e.config.promRegistry,
		SweepInterval:   e.config.sweepInterval,
		RecheckInterval: e.config.recheckInterval,
		CheckTimeout:    e.config.checkTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to load reconciler: %w", err)
	}
	e.reconciler = rec
	e.reconciler.Start()
	// Start API listener
	if e.config.apiListenAddress != "" {
		e.api = api.New(
			api.Config{
				ListenAddress: e.config.apiListenAddress,
			},
			e,
			e.config.logger,
		)
		if err := e.api.Start(context.Background()); err != nil {
			return err
		}
	}

	// Wait for shutdown signal
	<-e.done
	return nil
}

func (e *Engine) Stop() error {
	var err error
	e.shutdownOnce.Do(func() {
		err = e.shutdown()
	})
	return err
}

func (e *Engine) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if e.config.shutdownTimeout > 0 {
		shutdownTimeout = e.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	e.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	e.config.logger.Debug("shutdown phase 1: stopping new work")

	if e.api != nil {
		if stopErr := e.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain background reconciliation
	e.config.logger.Debug("shutdown phase 2: draining reconciliation")

	if e.reconciler != nil {
		e.reconciler.Stop()
	}

	// Phase 3: Flush state and close database
	e.config.logger.Debug("shutdown phase 3: flushing state")

	if e.db != nil {
		if closeErr := e.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	e.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range e.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	e.shutdownFuncs = nil

	if e.config.ledgerClient != nil {
		e.config.ledgerClient.Close()
	}

	if e.eventBus != nil {
		e.eventBus.Stop()
	}

	e.config.logger.Debug("graceful shutdown complete")
	close(e.done)
	return err
}

// Issue submits an issuance operation for the pair
func (e *Engine) Issue(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*models.Certificate, error) {
	return e.issuer.Issue(ctx, subjectId, holderId)
}

// Get returns the merged view for the pair, or nil if unknown
func (e *Engine) Get(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*query.CertificateView, error) {
	return e.querySvc.Get(ctx, subjectId, holderId)
}

// ListForHolder returns the merged certificate list for a holder
func (e *Engine) ListForHolder(
	ctx context.Context,
	holderId string,
) ([]query.CertificateView, error) {
	return e.querySvc.ListForHolder(ctx, holderId)
}

// Exists reports whether a certificate exists or is in progress for
// the pair
func (e *Engine) Exists(
	ctx context.Context,
	subjectId string,
	holderId string,
) (bool, error) {
	return e.querySvc.Exists(ctx, subjectId, holderId)
}

// Recheck performs an immediate receipt check for the pair
func (e *Engine) Recheck(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*models.Certificate, error) {
	return e.reconciler.CheckNow(ctx, subjectId, holderId)
}

// Verify asks the ledger directly whether the certificate exists
func (e *Engine) Verify(
	ctx context.Context,
	subjectId string,
	holderId string,
) (bool, error) {
	return e.querySvc.Verify(ctx, subjectId, holderId)
}
