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

package issuer

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/edulith/sigil/database"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/directory"
	"github.com/edulith/sigil/event"
	"github.com/edulith/sigil/ledger"
)

// Config describes the issuer configuration
type Config struct {
	Logger       *slog.Logger
	Database     *database.Database
	LedgerClient ledger.Client
	EventBus     *event.EventBus
	Directory    directory.Directory
	PriceRatio   float64
	CostBuffer   float64
}

// Issuer submits certificate issuance operations to the ledger and
// records their progress in the local store. Submissions are
// non-blocking: Issue returns once the ledger has accepted the
// operation, without waiting for it to be mined.
type Issuer struct {
	logger    *slog.Logger
	db        *database.Database
	client    ledger.Client
	eventBus  *event.EventBus
	directory directory.Directory
	estimator *Estimator
}

// New creates a new issuer
func New(cfg *Config) (*Issuer, error) {
	if cfg == nil {
		return nil, errors.New("no configuration provided")
	}
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.LedgerClient == nil {
		return nil, errors.New("no ledger client provided")
	}
	i := &Issuer{
		logger:    cfg.Logger,
		db:        cfg.Database,
		client:    cfg.LedgerClient,
		eventBus:  cfg.EventBus,
		directory: cfg.Directory,
		estimator: NewEstimator(
			cfg.LedgerClient,
			cfg.PriceRatio,
			cfg.CostBuffer,
		),
	}
	if i.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		i.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return i, nil
}

// Estimator returns the issuer's fee estimator
func (i *Issuer) Estimator() *Estimator {
	return i.estimator
}

// Issue submits an issuance operation for the given (subject, holder)
// pair. It is idempotent: a confirmed record is returned unchanged,
// and a pending record with an in-flight submission is returned
// without submitting again. Failed and underfunded records are
// superseded by a fresh attempt.
func (i *Issuer) Issue(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*models.Certificate, error) {
	var subjectName, categoryName string
	if i.directory != nil {
		if entry, ok := i.directory.Lookup(subjectId); ok {
			subjectName = entry.SubjectName
			categoryName = entry.CategoryName
		}
	}
	record, created, err := i.db.CreateCertificateIntent(
		subjectId, holderId, subjectName, categoryName, nil,
	)
	if err != nil {
		return nil, err
	}
	if !created {
		// Never re-submit a completed issuance
		if record.Status == models.CertificateStatusConfirmed {
			i.logger.Debug(
				"issuance already confirmed",
				"component", "issuer",
				"subject_id", subjectId,
				"holder_id", holderId,
			)
			return record, nil
		}
		// A pending record with a recorded tx is in flight. The
		// reconciler will settle it.
		if record.Status == models.CertificateStatusPending &&
			record.HasSubmission() {
			i.logger.Debug(
				"issuance already in flight",
				"component", "issuer",
				"subject_id", subjectId,
				"holder_id", holderId,
				"tx_id", record.TxID,
			)
			return record, nil
		}
	}
	estimate, err := i.estimator.Estimate(ctx, subjectId, holderId)
	if err != nil {
		var fundsErr ledger.InsufficientFundsError
		if errors.As(err, &fundsErr) {
			return i.recordFailure(
				record,
				models.CertificateStatusInsufficientFunds,
				fundsErr.Error(),
				err,
			)
		}
		return i.recordFailure(
			record,
			models.CertificateStatusFailed,
			err.Error(),
			err,
		)
	}
	txId, err := i.client.Submit(
		ctx,
		subjectId,
		holderId,
		estimate.GasPrice,
		estimate.GasLimit,
	)
	if err != nil {
		return i.recordFailure(
			record,
			models.CertificateStatusFailed,
			err.Error(),
			err,
		)
	}
	// The tx and pending status must be durable before we return, or
	// the reconciler would never learn about this submission
	pending := models.CertificateStatusPending
	updated, err := i.db.UpdateCertificate(
		subjectId, holderId,
		database.CertificateUpdate{
			TxID:   &txId,
			Status: &pending,
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	i.logger.Info(
		"issuance submitted",
		"component", "issuer",
		"subject_id", subjectId,
		"holder_id", holderId,
		"tx_id", txId,
		"gas_price", estimate.GasPrice.String(),
		"gas_limit", estimate.GasLimit,
	)
	if i.eventBus != nil {
		i.eventBus.Publish(
			event.CertificateSubmittedEventType,
			event.NewEvent(
				event.CertificateSubmittedEventType,
				event.CertificateSubmittedEvent{
					SubjectId: subjectId,
					HolderId:  holderId,
					TxId:      txId,
				},
			),
		)
		i.publishStateEvent(record.Status, updated, "submission accepted")
	}
	return updated, nil
}

// recordFailure persists an error outcome and returns the original
// error alongside the updated record
func (i *Issuer) recordFailure(
	record *models.Certificate,
	status models.CertificateStatus,
	lastError string,
	cause error,
) (*models.Certificate, error) {
	updated, err := i.db.UpdateCertificate(
		record.SubjectID, record.HolderID,
		database.CertificateUpdate{
			Status:    &status,
			LastError: &lastError,
		},
		nil,
	)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	i.logger.Warn(
		"issuance failed",
		"component", "issuer",
		"subject_id", record.SubjectID,
		"holder_id", record.HolderID,
		"status", string(status),
		"error", lastError,
	)
	if i.eventBus != nil {
		i.publishStateEvent(record.Status, updated, lastError)
	}
	return updated, cause
}

func (i *Issuer) publishStateEvent(
	oldStatus models.CertificateStatus,
	record *models.Certificate,
	reason string,
) {
	i.eventBus.Publish(
		event.CertificateStateEventType,
		event.NewEvent(
			event.CertificateStateEventType,
			event.CertificateStateEvent{
				SubjectId: record.SubjectID,
				HolderId:  record.HolderID,
				TxId:      record.TxID,
				OldStatus: string(oldStatus),
				NewStatus: string(record.Status),
				Reason:    reason,
			},
		),
	)
}
