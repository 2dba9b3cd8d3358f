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

package issuer_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/edulith/sigil/database"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/directory"
	"github.com/edulith/sigil/issuer"
	"github.com/edulith/sigil/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(
	t *testing.T,
	mock *ledger.MockClient,
) (*issuer.Issuer, *database.Database) {
	t.Helper()
	db, err := database.New(&database.Config{
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	i, err := issuer.New(&issuer.Config{
		Database:     db,
		LedgerClient: mock,
		Directory: directory.NewStaticDirectory(map[string]directory.Entry{
			"course-101": {
				SubjectName:  "Intro to Graphs",
				CategoryName: "Mathematics",
			},
		}),
	})
	require.NoError(t, err)
	return i, db
}

func TestIssueSuccess(t *testing.T) {
	mock := ledger.NewMockClient()
	i, _ := newTestIssuer(t, mock)

	record, err := i.Issue(context.Background(), "course-101", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateStatusPending, record.Status)
	assert.NotEmpty(t, record.TxID)
	assert.Equal(t, "Intro to Graphs", record.SubjectName)
	assert.Equal(t, "Mathematics", record.CategoryName)
	assert.Equal(t, 1, mock.SubmitCount())
}

func TestIssueInsufficientFunds(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.AccountBalance = big.NewInt(1)
	i, db := newTestIssuer(t, mock)

	record, err := i.Issue(context.Background(), "course-101", "user-1")
	var fundsErr ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	require.NotNil(t, record)
	assert.Equal(t, models.CertificateStatusInsufficientFunds, record.Status)
	assert.Empty(t, record.TxID)
	assert.Contains(t, record.LastError, "insufficient funds")
	// Nothing was submitted to the ledger
	assert.Equal(t, 0, mock.SubmitCount())

	// The failure is durable
	stored, err := db.GetCertificate("course-101", "user-1", nil)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.CertificateStatusInsufficientFunds, stored.Status)
}

func TestIssueSubmitFailure(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.SubmitErr = errors.New("nonce too low")
	i, _ := newTestIssuer(t, mock)

	record, err := i.Issue(context.Background(), "course-101", "user-1")
	require.Error(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.CertificateStatusFailed, record.Status)
	assert.Empty(t, record.TxID)
	assert.Contains(t, record.LastError, "nonce too low")
}

func TestIssueRetryAfterFailure(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.SubmitErr = errors.New("nonce too low")
	i, _ := newTestIssuer(t, mock)

	_, err := i.Issue(context.Background(), "course-101", "user-1")
	require.Error(t, err)

	// Ledger recovers; a fresh attempt supersedes the failure
	mock.SubmitErr = nil
	record, err := i.Issue(context.Background(), "course-101", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateStatusPending, record.Status)
	assert.NotEmpty(t, record.TxID)
	assert.Empty(t, record.LastError)
}

func TestIssueIdempotentOnConfirmed(t *testing.T) {
	mock := ledger.NewMockClient()
	i, db := newTestIssuer(t, mock)

	record, err := i.Issue(context.Background(), "course-101", "user-1")
	require.NoError(t, err)
	confirmed := models.CertificateStatusConfirmed
	_, err = db.UpdateCertificate(
		"course-101", "user-1",
		database.CertificateUpdate{Status: &confirmed},
		nil,
	)
	require.NoError(t, err)

	again, err := i.Issue(context.Background(), "course-101", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateStatusConfirmed, again.Status)
	assert.Equal(t, record.TxID, again.TxID)
	// No second submission was made
	assert.Equal(t, 1, mock.SubmitCount())
}

func TestIssueIdempotentOnPending(t *testing.T) {
	mock := ledger.NewMockClient()
	i, _ := newTestIssuer(t, mock)

	record, err := i.Issue(context.Background(), "course-101", "user-1")
	require.NoError(t, err)

	again, err := i.Issue(context.Background(), "course-101", "user-1")
	require.NoError(t, err)
	assert.Equal(t, record.TxID, again.TxID)
	assert.Equal(t, 1, mock.SubmitCount())
}

func TestIssueConcurrent(t *testing.T) {
	mock := ledger.NewMockClient()
	i, db := newTestIssuer(t, mock)

	// Concurrent issuance for the same pair must converge on a single
	// record, whichever caller wins the race
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = i.Issue(context.Background(), "course-101", "user-1")
		}()
	}
	wg.Wait()

	records, err := db.ListCertificatesByHolder("user-1", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.CertificateStatusPending, records[0].Status)
	assert.NotEmpty(t, records[0].TxID)
}
