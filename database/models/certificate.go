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

package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

var ErrCertificateNotFound = errors.New("certificate not found")

// CertificateStatus represents the issuance status of a certificate
// record with type safety
//
//nolint:recvcheck
type CertificateStatus string

const (
	// CertificateStatusNotStarted means no submission has ever been
	// made for this record
	CertificateStatusNotStarted CertificateStatus = "not_started"
	// CertificateStatusPending means a submission was accepted by the
	// ledger and a receipt has not yet been observed
	CertificateStatusPending CertificateStatus = "pending"
	// CertificateStatusConfirmed means the ledger reported a success
	// receipt. Confirmed is terminal: the record is never mutated again
	CertificateStatusConfirmed CertificateStatus = "confirmed"
	// CertificateStatusFailed means the ledger rejected the submission
	// or reported a failure receipt. A new attempt may supersede it
	CertificateStatusFailed CertificateStatus = "failed"
	// CertificateStatusInsufficientFunds means the submitting account
	// could not cover the estimated cost, or the operation exhausted
	// its allotted budget on-chain. A new attempt may supersede it
	CertificateStatusInsufficientFunds CertificateStatus = "insufficient_funds"
)

// Valid returns true if the status is a known value
func (s CertificateStatus) Valid() bool {
	switch s {
	case CertificateStatusNotStarted,
		CertificateStatusPending,
		CertificateStatusConfirmed,
		CertificateStatusFailed,
		CertificateStatusInsufficientFunds:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status permits no further mutation
func (s CertificateStatus) Terminal() bool {
	return s == CertificateStatusConfirmed
}

// IsError returns true for statuses that carry a diagnostic
func (s CertificateStatus) IsError() bool {
	return s == CertificateStatusFailed ||
		s == CertificateStatusInsufficientFunds
}

// Value implements the driver.Valuer interface for database storage
func (s CertificateStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid certificate status: %q", string(s))
	}
	return string(s), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (s *CertificateStatus) Scan(value any) error {
	if value == nil {
		*s = CertificateStatusNotStarted
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = CertificateStatus(v)
	case []byte:
		*s = CertificateStatus(v)
	default:
		return fmt.Errorf("unsupported certificate status type: %T", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid certificate status: %q", string(*s))
	}
	return nil
}

// Certificate is the durable record of issuance intent and observed
// status for a single (subject, holder) pair. The composite unique
// index is the concurrency-control primitive for racing submissions.
type Certificate struct {
	ID        uint   `gorm:"primarykey"`
	SubjectID string `gorm:"uniqueIndex:idx_certificate_subject_holder;size:64;not null"`
	HolderID  string `gorm:"uniqueIndex:idx_certificate_subject_holder;size:64;not null"`
	// Denormalized display fields, informational only
	SubjectName  string `gorm:"size:255"`
	CategoryName string `gorm:"size:255"`
	// TxID is empty until the ledger accepts a submission
	TxID      string            `gorm:"index;size:66"`
	Status    CertificateStatus `gorm:"index;size:32;default:'not_started'"`
	LastError string            `gorm:"size:1024"`
	IssuedAt  time.Time
}

func (Certificate) TableName() string {
	return "certificate"
}

// HasSubmission returns true if the ledger has ever accepted a
// submission for this record
func (c *Certificate) HasSubmission() bool {
	return c.TxID != ""
}

// Consistent reports whether the record satisfies the tx/status
// invariant: an empty TxID is only valid for not_started and for
// error states reached before the ledger accepted the operation
func (c *Certificate) Consistent() bool {
	if c.TxID == "" {
		return c.Status != CertificateStatusPending &&
			c.Status != CertificateStatusConfirmed
	}
	return c.Status != CertificateStatusNotStarted
}
