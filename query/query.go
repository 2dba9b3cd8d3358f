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

package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/edulith/sigil/database"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/ledger"
)

// Source identifies where a certificate view row came from
type Source string

const (
	// SourceLocal means the row came from the local record store
	SourceLocal Source = "local"
	// SourceLedger means the row is known only to the ledger
	SourceLedger Source = "ledger"
)

// CertificateView is a merged read model over the local record store
// and the ledger
type CertificateView struct {
	SubjectId    string
	HolderId     string
	SubjectName  string
	CategoryName string
	TxId         string
	Status       models.CertificateStatus
	LastError    string
	IssuedAt     time.Time
	Source       Source
}

// Config describes the query service configuration
type Config struct {
	Logger       *slog.Logger
	Database     *database.Database
	LedgerClient ledger.Client
}

// Service answers read queries by merging local records with the
// ledger's view. The ledger's affirmative answer wins on conflict;
// local records supply lifecycle detail for pairs the ledger does not
// report.
type Service struct {
	logger *slog.Logger
	db     *database.Database
	client ledger.Client
}

// New creates a new query service
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("no configuration provided")
	}
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.LedgerClient == nil {
		return nil, errors.New("no ledger client provided")
	}
	s := &Service{
		logger: cfg.Logger,
		db:     cfg.Database,
		client: cfg.LedgerClient,
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return s, nil
}

func viewFromRecord(record *models.Certificate) CertificateView {
	return CertificateView{
		SubjectId:    record.SubjectID,
		HolderId:     record.HolderID,
		SubjectName:  record.SubjectName,
		CategoryName: record.CategoryName,
		TxId:         record.TxID,
		Status:       record.Status,
		LastError:    record.LastError,
		IssuedAt:     record.IssuedAt,
		Source:       SourceLocal,
	}
}

func viewFromLedger(cert *ledger.Certificate) CertificateView {
	return CertificateView{
		SubjectId: cert.SubjectId,
		HolderId:  cert.HolderId,
		Status:    models.CertificateStatusConfirmed,
		IssuedAt:  cert.IssuedAt,
		Source:    SourceLedger,
	}
}

// Get returns the merged view for a single (subject, holder) pair.
// The ledger is consulted first and its affirmative answer wins: it
// cannot be stale in the positive direction, even when a local record
// still reports an earlier failed attempt. Local records cover pairs
// the ledger does not report, including in-flight and failed
// submissions. Returns nil when neither side knows the pair.
func (s *Service) Get(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*CertificateView, error) {
	cert, ledgerErr := s.client.GetCertificate(ctx, subjectId, holderId)
	if ledgerErr == nil {
		view := viewFromLedger(cert)
		return &view, nil
	}
	if !errors.Is(ledgerErr, ledger.ErrNotFound) {
		s.logger.Warn(
			"failed to read ledger certificate, using local record only",
			"component", "query",
			"subject_id", subjectId,
			"holder_id", holderId,
			"error", ledgerErr,
		)
	}
	record, err := s.db.GetCertificate(subjectId, holderId, nil)
	if err != nil {
		return nil, err
	}
	if record != nil {
		view := viewFromRecord(record)
		return &view, nil
	}
	if !errors.Is(ledgerErr, ledger.ErrNotFound) {
		return nil, ledgerErr
	}
	return nil, nil
}

// Exists reports whether a certificate exists or is in progress for
// the pair on either side
func (s *Service) Exists(
	ctx context.Context,
	subjectId string,
	holderId string,
) (bool, error) {
	view, err := s.Get(ctx, subjectId, holderId)
	if err != nil {
		return false, err
	}
	return view != nil, nil
}

// ListForHolder returns the union of on-ledger certificates and local
// records for a holder, deduplicated by subject with the ledger entry
// preferred. Results are ordered by subject. A ledger failure degrades
// to the local view rather than failing the query.
func (s *Service) ListForHolder(
	ctx context.Context,
	holderId string,
) ([]CertificateView, error) {
	certs, err := s.client.ListCertificates(ctx, holderId)
	if err != nil {
		s.logger.Warn(
			"failed to list ledger certificates, using local records only",
			"component", "query",
			"holder_id", holderId,
			"error", err,
		)
		certs = nil
	}
	records, err := s.db.ListCertificatesByHolder(holderId, nil)
	if err != nil {
		return nil, err
	}
	views := make([]CertificateView, 0, len(certs)+len(records))
	seen := make(map[string]struct{}, len(certs))
	for i := range certs {
		views = append(views, viewFromLedger(&certs[i]))
		seen[certs[i].SubjectId] = struct{}{}
	}
	// Local records only fill subjects the ledger does not report
	for i := range records {
		if _, ok := seen[records[i].SubjectID]; ok {
			continue
		}
		views = append(views, viewFromRecord(&records[i]))
	}
	sort.Slice(views, func(a, b int) bool {
		return views[a].SubjectId < views[b].SubjectId
	})
	return views, nil
}

// Verify asks the ledger directly whether a certificate exists for
// the pair, bypassing local records entirely
func (s *Service) Verify(
	ctx context.Context,
	subjectId string,
	holderId string,
) (bool, error) {
	_, err := s.client.GetCertificate(ctx, subjectId, holderId)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
