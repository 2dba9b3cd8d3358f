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

package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/edulith/sigil/database"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/event"
	"github.com/edulith/sigil/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultSweepInterval is how often the reconciler checks every
	// pending record against the ledger
	DefaultSweepInterval = 30 * time.Second
	// DefaultRecheckInterval is how often a freshly submitted record
	// is polled before the regular sweep picks it up
	DefaultRecheckInterval = 12 * time.Second
	// DefaultCheckTimeout bounds a single receipt lookup
	DefaultCheckTimeout = 10 * time.Second
	// DefaultMaxConcurrentChecks bounds parallel receipt lookups
	// during a sweep
	DefaultMaxConcurrentChecks = 4

	// maxRecheckAttempts caps the focused polling loop for a single
	// submission. After that the sweep is responsible.
	maxRecheckAttempts = 20
)

// Config describes the reconciler configuration
type Config struct {
	Logger          *slog.Logger
	Database        *database.Database
	LedgerClient    ledger.Client
	EventBus        *event.EventBus
	PromRegistry    prometheus.Registerer
	SweepInterval   time.Duration
	RecheckInterval time.Duration
	CheckTimeout    time.Duration
}

// Reconciler drives pending certificate records to their final status
// by polling the ledger for receipts. It also repairs records whose
// status and transaction identifier disagree.
type Reconciler struct {
	logger          *slog.Logger
	db              *database.Database
	client          ledger.Client
	eventBus        *event.EventBus
	metrics         *reconcilerMetrics
	sweepInterval   time.Duration
	recheckInterval time.Duration
	checkTimeout    time.Duration
	checkSem        chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	stopMu    sync.Mutex
	stopping  bool
	doneWg    sync.WaitGroup
	subId     event.EventSubscriberId
}

// New creates a new reconciler
func New(cfg *Config) (*Reconciler, error) {
	if cfg == nil {
		return nil, errors.New("no configuration provided")
	}
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.LedgerClient == nil {
		return nil, errors.New("no ledger client provided")
	}
	r := &Reconciler{
		logger:          cfg.Logger,
		db:              cfg.Database,
		client:          cfg.LedgerClient,
		eventBus:        cfg.EventBus,
		sweepInterval:   cfg.SweepInterval,
		recheckInterval: cfg.RecheckInterval,
		checkTimeout:    cfg.CheckTimeout,
		checkSem:        make(chan struct{}, DefaultMaxConcurrentChecks),
		stopCh:          make(chan struct{}),
	}
	if r.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if r.sweepInterval <= 0 {
		r.sweepInterval = DefaultSweepInterval
	}
	if r.recheckInterval <= 0 {
		r.recheckInterval = DefaultRecheckInterval
	}
	if r.checkTimeout <= 0 {
		r.checkTimeout = DefaultCheckTimeout
	}
	if cfg.PromRegistry != nil {
		r.initMetrics(cfg.PromRegistry)
	}
	return r, nil
}

// Start launches the background sweep loop and subscribes to
// submission events for focused rechecks
func (r *Reconciler) Start() {
	r.startOnce.Do(func() {
		if r.eventBus != nil {
			r.subId = r.eventBus.SubscribeFunc(
				event.CertificateSubmittedEventType,
				r.handleSubmittedEvent,
			)
		}
		r.doneWg.Add(1)
		go r.sweepLoop()
	})
}

// Stop shuts down the sweep loop and waits for in-flight checks
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		if r.eventBus != nil {
			r.eventBus.Unsubscribe(
				event.CertificateSubmittedEventType,
				r.subId,
			)
		}
		// Events already buffered for delivery can still reach
		// handleSubmittedEvent after the unsubscribe; the flag keeps
		// them from adding to the waitgroup once we start waiting
		r.stopMu.Lock()
		r.stopping = true
		r.stopMu.Unlock()
		close(r.stopCh)
		r.doneWg.Wait()
	})
}

func (r *Reconciler) sweepLoop() {
	defer r.doneWg.Done()
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Sweep(context.Background())
		}
	}
}

// Sweep repairs inconsistent records and checks every pending record
// against the ledger. Returns the number of records checked.
func (r *Reconciler) Sweep(ctx context.Context) int {
	repaired, err := r.db.RepairCertificateConsistency(nil)
	if err != nil {
		r.logger.Error(
			"failed to repair certificate records",
			"component", "reconciler",
			"error", err,
		)
	} else if repaired > 0 {
		r.logger.Warn(
			"repaired inconsistent certificate records",
			"component", "reconciler",
			"count", repaired,
		)
		if r.metrics != nil {
			r.metrics.repairsTotal.Add(float64(repaired))
		}
	}
	pending, err := r.db.ListPendingCertificates(nil)
	if err != nil {
		r.logger.Error(
			"failed to list pending certificates",
			"component", "reconciler",
			"error", err,
		)
		return 0
	}
	if r.metrics != nil {
		r.metrics.sweepsTotal.Inc()
		r.metrics.pendingRecords.Set(float64(len(pending)))
	}
	if len(pending) == 0 {
		return 0
	}
	r.logger.Debug(
		"sweeping pending certificates",
		"component", "reconciler",
		"count", len(pending),
	)
	var wg sync.WaitGroup
	for _, record := range pending {
		select {
		case <-r.stopCh:
			wg.Wait()
			return len(pending)
		case r.checkSem <- struct{}{}:
		}
		wg.Add(1)
		go func(record models.Certificate) {
			defer wg.Done()
			defer func() { <-r.checkSem }()
			checkCtx, cancel := context.WithTimeout(ctx, r.checkTimeout)
			defer cancel()
			r.checkRecord(checkCtx, &record)
		}(record)
	}
	wg.Wait()
	return len(pending)
}

// CheckNow performs an immediate receipt check for a single record and
// returns its current state. A missing receipt is not an error.
func (r *Reconciler) CheckNow(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*models.Certificate, error) {
	record, err := r.db.GetCertificate(subjectId, holderId, nil)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, models.ErrCertificateNotFound
	}
	if record.Status != models.CertificateStatusPending ||
		!record.HasSubmission() {
		return record, nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()
	r.checkRecord(checkCtx, record)
	return r.db.GetCertificate(subjectId, holderId, nil)
}

// handleSubmittedEvent polls a fresh submission on a short interval so
// confirmation lands well before the next full sweep
func (r *Reconciler) handleSubmittedEvent(evt event.Event) {
	data, ok := evt.Data.(event.CertificateSubmittedEvent)
	if !ok {
		return
	}
	r.stopMu.Lock()
	if r.stopping {
		r.stopMu.Unlock()
		return
	}
	r.doneWg.Add(1)
	r.stopMu.Unlock()
	go func() {
		defer r.doneWg.Done()
		ticker := time.NewTicker(r.recheckInterval)
		defer ticker.Stop()
		for range maxRecheckAttempts {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
			}
			record, err := r.db.GetCertificate(
				data.SubjectId, data.HolderId, nil,
			)
			if err != nil || record == nil {
				return
			}
			// Resolved by another path
			if record.Status != models.CertificateStatusPending {
				return
			}
			checkCtx, cancel := context.WithTimeout(
				context.Background(), r.checkTimeout,
			)
			r.checkRecord(checkCtx, record)
			cancel()
		}
	}()
}

// checkRecord fetches the receipt for a pending record and applies the
// outcome. Transient ledger errors leave the record untouched.
func (r *Reconciler) checkRecord(
	ctx context.Context,
	record *models.Certificate,
) {
	receipt, err := r.client.Receipt(ctx, record.TxID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// Not yet mined, try again next sweep
			return
		}
		r.logger.Debug(
			"transient error fetching receipt",
			"component", "reconciler",
			"tx_id", record.TxID,
			"error", err,
		)
		return
	}
	oldStatus := record.Status
	var newStatus models.CertificateStatus
	var lastError string
	switch {
	case receipt.Success:
		newStatus = models.CertificateStatusConfirmed
	case receipt.ExhaustedGas():
		// Consuming the entire allotment means the operation ran out
		// of budget on-chain
		newStatus = models.CertificateStatusInsufficientFunds
		lastError = fmt.Sprintf(
			"transaction exhausted gas: used %d of %d",
			receipt.GasUsed,
			receipt.GasLimit,
		)
	default:
		newStatus = models.CertificateStatusFailed
		lastError = fmt.Sprintf(
			"transaction reverted in block %d",
			receipt.BlockNumber,
		)
	}
	update := database.CertificateUpdate{
		Status: &newStatus,
	}
	if lastError != "" {
		update.LastError = &lastError
	}
	updated, err := r.db.UpdateCertificate(
		record.SubjectID, record.HolderID, update, nil,
	)
	if err != nil {
		r.logger.Error(
			"failed to update certificate from receipt",
			"component", "reconciler",
			"tx_id", record.TxID,
			"error", err,
		)
		return
	}
	if len(receipt.Raw) > 0 {
		if err := r.db.PutReceipt(record.TxID, receipt.Raw); err != nil {
			r.logger.Warn(
				"failed to archive receipt",
				"component", "reconciler",
				"tx_id", record.TxID,
				"error", err,
			)
		}
	}
	r.logger.Info(
		"certificate reconciled",
		"component", "reconciler",
		"subject_id", record.SubjectID,
		"holder_id", record.HolderID,
		"tx_id", record.TxID,
		"status", string(updated.Status),
	)
	if r.metrics != nil {
		r.metrics.transitionsTotal.WithLabelValues(string(newStatus)).Inc()
	}
	if r.eventBus != nil {
		r.eventBus.Publish(
			event.CertificateStateEventType,
			event.NewEvent(
				event.CertificateStateEventType,
				event.CertificateStateEvent{
					SubjectId: record.SubjectID,
					HolderId:  record.HolderID,
					TxId:      record.TxID,
					OldStatus: string(oldStatus),
					NewStatus: string(updated.Status),
					Reason:    lastError,
				},
			),
		)
	}
}
