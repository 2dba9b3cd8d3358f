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

package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/edulith/sigil/database/models"
	"gorm.io/gorm"
)

// CertificateUpdate describes a partial update to a certificate
// record. Nil fields retain their prior values.
type CertificateUpdate struct {
	SubjectName  *string
	CategoryName *string
	TxID         *string
	Status       *models.CertificateStatus
	LastError    *string
}

// GetCertificate returns the certificate record for the given
// (subject, holder) pair, or nil if no record exists
func (d *Database) GetCertificate(
	subjectId string,
	holderId string,
	txn *gorm.DB,
) (*models.Certificate, error) {
	if txn == nil {
		txn = d.DB()
	}
	ret := &models.Certificate{}
	result := txn.
		Where("subject_id = ? AND holder_id = ?", subjectId, holderId).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// CreateCertificateIntent records issuance intent for a (subject,
// holder) pair before any ledger submission is made. The composite
// unique index resolves concurrent creation races: the loser observes
// the conflict and re-reads the winner's record, so both callers see
// a single shared row. Returns the record and whether this caller
// created it.
func (d *Database) CreateCertificateIntent(
	subjectId string,
	holderId string,
	subjectName string,
	categoryName string,
	txn *gorm.DB,
) (*models.Certificate, bool, error) {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	existing, err := d.GetCertificate(subjectId, holderId, txn)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	record := &models.Certificate{
		SubjectID:    subjectId,
		HolderID:     holderId,
		SubjectName:  subjectName,
		CategoryName: categoryName,
		Status:       models.CertificateStatusNotStarted,
		IssuedAt:     time.Now(),
	}
	result := db.Create(record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			// Lost the creation race. Treat as success and return the
			// winner's record
			winner, getErr := d.GetCertificate(subjectId, holderId, txn)
			if getErr != nil {
				return nil, false, getErr
			}
			if winner == nil {
				return nil, false, fmt.Errorf(
					"certificate conflict for (%s, %s) but no record found",
					subjectId,
					holderId,
				)
			}
			return winner, false, nil
		}
		return nil, false, result.Error
	}
	return record, true, nil
}

// UpdateCertificate applies a partial update to an existing
// certificate record. Only non-nil fields are changed. A confirmed
// record is terminal: the update is a no-op and the existing record is
// returned unchanged. Transitions away from an error status clear the
// diagnostic. Any material change refreshes the record timestamp.
func (d *Database) UpdateCertificate(
	subjectId string,
	holderId string,
	update CertificateUpdate,
	txn *gorm.DB,
) (*models.Certificate, error) {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	record, err := d.GetCertificate(subjectId, holderId, txn)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, models.ErrCertificateNotFound
	}
	// The ledger's answer is final and positive
	if record.Status.Terminal() {
		return record, nil
	}
	updates := map[string]any{}
	if update.SubjectName != nil {
		updates["subject_name"] = *update.SubjectName
	}
	if update.CategoryName != nil {
		updates["category_name"] = *update.CategoryName
	}
	if update.TxID != nil {
		updates["tx_id"] = *update.TxID
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, fmt.Errorf(
				"invalid certificate status: %q",
				string(*update.Status),
			)
		}
		updates["status"] = *update.Status
		if !update.Status.IsError() {
			// Clear stale diagnostics on recovery
			updates["last_error"] = ""
		}
	}
	if update.LastError != nil {
		updates["last_error"] = *update.LastError
	}
	if len(updates) == 0 {
		return record, nil
	}
	updates["issued_at"] = time.Now()
	// The terminal guard is repeated on the statement itself: a
	// concurrent confirm landing between the read above and this write
	// must not be overwritten
	result := db.Model(record).
		Where("status <> ?", models.CertificateStatusConfirmed).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf(
			"failed to update certificate: %w",
			result.Error,
		)
	}
	// Re-read so callers observe the merged state
	return d.GetCertificate(subjectId, holderId, txn)
}

// ListPendingCertificates returns every record awaiting a receipt:
// status pending with a recorded transaction. This is the
// reconciler's work queue.
func (d *Database) ListPendingCertificates(
	txn *gorm.DB,
) ([]models.Certificate, error) {
	if txn == nil {
		txn = d.DB()
	}
	var ret []models.Certificate
	result := txn.
		Where("status = ? AND tx_id <> ''", models.CertificateStatusPending).
		Order("subject_id, holder_id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// ListCertificatesByHolder returns all records for the given holder,
// ordered by subject
func (d *Database) ListCertificatesByHolder(
	holderId string,
	txn *gorm.DB,
) ([]models.Certificate, error) {
	if txn == nil {
		txn = d.DB()
	}
	var ret []models.Certificate
	result := txn.
		Where("holder_id = ?", holderId).
		Order("subject_id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// RepairCertificateConsistency corrects records whose status and
// transaction identifier disagree, caused by partial writes or
// external tampering. A pending record with no transaction reverts to
// not_started; a record with a transaction that never progressed
// advances to pending. Confirmed records are never touched. Returns
// the number of repaired records.
func (d *Database) RepairCertificateConsistency(
	txn *gorm.DB,
) (int64, error) {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	var repaired int64
	result := db.Model(&models.Certificate{}).
		Where("status = ? AND tx_id = ''", models.CertificateStatusPending).
		Updates(map[string]any{
			"status": models.CertificateStatusNotStarted,
		})
	if result.Error != nil {
		return repaired, result.Error
	}
	repaired += result.RowsAffected
	result = db.Model(&models.Certificate{}).
		Where(
			"status = ? AND tx_id <> ''",
			models.CertificateStatusNotStarted,
		).
		Updates(map[string]any{
			"status": models.CertificateStatusPending,
		})
	if result.Error != nil {
		return repaired, result.Error
	}
	repaired += result.RowsAffected
	return repaired, nil
}
