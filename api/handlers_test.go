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

package api_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edulith/sigil/api"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/ledger"
	"github.com/edulith/sigil/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEngine implements api.CertificateEngine with canned responses
type mockEngine struct {
	issueRecord   *models.Certificate
	issueErr      error
	getView       *query.CertificateView
	getErr        error
	listViews     []query.CertificateView
	listErr       error
	recheckRecord *models.Certificate
	recheckErr    error
	verified      bool
	verifyErr     error
}

func (m *mockEngine) Issue(
	_ context.Context, _ string, _ string,
) (*models.Certificate, error) {
	return m.issueRecord, m.issueErr
}

func (m *mockEngine) Get(
	_ context.Context, _ string, _ string,
) (*query.CertificateView, error) {
	return m.getView, m.getErr
}

func (m *mockEngine) ListForHolder(
	_ context.Context, _ string,
) ([]query.CertificateView, error) {
	return m.listViews, m.listErr
}

func (m *mockEngine) Recheck(
	_ context.Context, _ string, _ string,
) (*models.Certificate, error) {
	return m.recheckRecord, m.recheckErr
}

func (m *mockEngine) Verify(
	_ context.Context, _ string, _ string,
) (bool, error) {
	return m.verified, m.verifyErr
}

func newTestServer(engine *mockEngine) http.Handler {
	return api.New(api.Config{}, engine, nil).Routes()
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&mockEngine{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsHealthy)
}

func TestHandleIssueAccepted(t *testing.T) {
	srv := newTestServer(&mockEngine{
		issueRecord: &models.Certificate{
			SubjectID: "course-101",
			HolderID:  "user-1",
			TxID:      "0xabc",
			Status:    models.CertificateStatusPending,
		},
	})
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/certificates",
		strings.NewReader(`{"subject_id":"course-101","holder_id":"user-1"}`),
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp api.CertificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "0xabc", resp.TxId)
}

func TestHandleIssueAlreadyConfirmed(t *testing.T) {
	srv := newTestServer(&mockEngine{
		issueRecord: &models.Certificate{
			SubjectID: "course-101",
			HolderID:  "user-1",
			TxID:      "0xabc",
			Status:    models.CertificateStatusConfirmed,
		},
	})
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/certificates",
		strings.NewReader(`{"subject_id":"course-101","holder_id":"user-1"}`),
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleIssueInsufficientFunds(t *testing.T) {
	srv := newTestServer(&mockEngine{
		issueRecord: &models.Certificate{
			SubjectID: "course-101",
			HolderID:  "user-1",
			Status:    models.CertificateStatusInsufficientFunds,
			LastError: "insufficient funds: balance 1 below estimated cost 500",
		},
		issueErr: ledger.InsufficientFundsError{
			Balance: big.NewInt(1),
			Cost:    big.NewInt(500),
		},
	})
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/certificates",
		strings.NewReader(`{"subject_id":"course-101","holder_id":"user-1"}`),
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	var resp api.CertificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_funds", resp.Status)
	assert.Contains(t, resp.LastError, "insufficient funds")
}

func TestHandleIssueBadRequest(t *testing.T) {
	srv := newTestServer(&mockEngine{})
	testDefs := []string{
		`not json`,
		`{}`,
		`{"subject_id":"course-101"}`,
		`{"holder_id":"user-1"}`,
	}
	for _, body := range testDefs {
		req := httptest.NewRequest(
			http.MethodPost,
			"/api/v1/certificates",
			strings.NewReader(body),
		)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestHandleGet(t *testing.T) {
	srv := newTestServer(&mockEngine{
		getView: &query.CertificateView{
			SubjectId: "course-101",
			HolderId:  "user-1",
			Status:    models.CertificateStatusConfirmed,
			Source:    query.SourceLedger,
		},
	})
	req := httptest.NewRequest(
		http.MethodGet,
		"/api/v1/certificates/user-1/course-101",
		nil,
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp api.CertificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, "ledger", resp.Source)
}

func TestHandleGetNotFound(t *testing.T) {
	srv := newTestServer(&mockEngine{})
	req := httptest.NewRequest(
		http.MethodGet,
		"/api/v1/certificates/user-1/course-101",
		nil,
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListForHolder(t *testing.T) {
	srv := newTestServer(&mockEngine{
		listViews: []query.CertificateView{
			{
				SubjectId: "course-101",
				HolderId:  "user-1",
				Status:    models.CertificateStatusPending,
				Source:    query.SourceLocal,
			},
			{
				SubjectId: "course-102",
				HolderId:  "user-1",
				Status:    models.CertificateStatusConfirmed,
				Source:    query.SourceLedger,
			},
		},
	})
	req := httptest.NewRequest(
		http.MethodGet,
		"/api/v1/certificates/user-1",
		nil,
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []api.CertificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "course-101", resp[0].SubjectId)
	assert.Equal(t, "course-102", resp[1].SubjectId)
}

func TestHandleRecheck(t *testing.T) {
	srv := newTestServer(&mockEngine{
		recheckRecord: &models.Certificate{
			SubjectID: "course-101",
			HolderID:  "user-1",
			TxID:      "0xabc",
			Status:    models.CertificateStatusConfirmed,
		},
	})
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/certificates/user-1/course-101/recheck",
		nil,
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp api.CertificateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)
}

func TestHandleRecheckNotFound(t *testing.T) {
	srv := newTestServer(&mockEngine{
		recheckErr: models.ErrCertificateNotFound,
	})
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/certificates/user-1/course-101/recheck",
		nil,
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleVerify(t *testing.T) {
	srv := newTestServer(&mockEngine{verified: true})
	req := httptest.NewRequest(
		http.MethodGet,
		"/api/v1/certificates/user-1/course-101/verify",
		nil,
	)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp api.VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Verified)
	assert.Equal(t, "course-101", resp.SubjectId)
	assert.Equal(t, "user-1", resp.HolderId)
}
