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

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/ledger"
)

const apiVersion = "0.1.0"

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes a standard-format error response
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// handleRoot handles GET / and returns API metadata
func (a *Api) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "sigil",
		Version: apiVersion,
	})
}

// handleHealth handles GET /health
func (a *Api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleIssue handles POST /api/v1/certificates. The submission is
// accepted and recorded before the response is written; confirmation
// happens asynchronously via reconciliation.
func (a *Api) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid request body",
		)
		return
	}
	if req.SubjectId == "" || req.HolderId == "" {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"subject_id and holder_id are required",
		)
		return
	}
	record, err := a.engine.Issue(r.Context(), req.SubjectId, req.HolderId)
	if err != nil {
		if record == nil {
			a.logger.Error(
				"failed to issue certificate",
				"subject_id", req.SubjectId,
				"holder_id", req.HolderId,
				"error", err,
			)
			writeError(
				w,
				http.StatusInternalServerError,
				"Internal Server Error",
				"failed to issue certificate",
			)
			return
		}
		// The failure is recorded on the certificate itself. Map the
		// typed outcomes to meaningful statuses but always return the
		// record so the caller can see what happened.
		status := http.StatusBadGateway
		var fundsErr ledger.InsufficientFundsError
		if errors.As(err, &fundsErr) {
			status = http.StatusPaymentRequired
		}
		writeJSON(w, status, certificateResponseFromRecord(record))
		return
	}
	status := http.StatusAccepted
	if record.Status == models.CertificateStatusConfirmed {
		status = http.StatusOK
	}
	writeJSON(w, status, certificateResponseFromRecord(record))
}

// handleGet handles GET /api/v1/certificates/{holderId}/{subjectId}
func (a *Api) handleGet(w http.ResponseWriter, r *http.Request) {
	holderId := r.PathValue("holderId")
	subjectId := r.PathValue("subjectId")
	view, err := a.engine.Get(r.Context(), subjectId, holderId)
	if err != nil {
		a.logger.Error(
			"failed to get certificate",
			"subject_id", subjectId,
			"holder_id", holderId,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to retrieve certificate",
		)
		return
	}
	if view == nil {
		writeError(
			w,
			http.StatusNotFound,
			"Not Found",
			"no certificate for this subject and holder",
		)
		return
	}
	writeJSON(w, http.StatusOK, certificateResponseFromView(view))
}

// handleListForHolder handles GET /api/v1/certificates/{holderId}
func (a *Api) handleListForHolder(w http.ResponseWriter, r *http.Request) {
	holderId := r.PathValue("holderId")
	views, err := a.engine.ListForHolder(r.Context(), holderId)
	if err != nil {
		a.logger.Error(
			"failed to list certificates",
			"holder_id", holderId,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to list certificates",
		)
		return
	}
	ret := make([]CertificateResponse, 0, len(views))
	for i := range views {
		ret = append(ret, certificateResponseFromView(&views[i]))
	}
	writeJSON(w, http.StatusOK, ret)
}

// handleRecheck handles
// POST /api/v1/certificates/{holderId}/{subjectId}/recheck and
// triggers an immediate receipt check
func (a *Api) handleRecheck(w http.ResponseWriter, r *http.Request) {
	holderId := r.PathValue("holderId")
	subjectId := r.PathValue("subjectId")
	record, err := a.engine.Recheck(r.Context(), subjectId, holderId)
	if err != nil {
		if errors.Is(err, models.ErrCertificateNotFound) {
			writeError(
				w,
				http.StatusNotFound,
				"Not Found",
				"no certificate for this subject and holder",
			)
			return
		}
		a.logger.Error(
			"failed to recheck certificate",
			"subject_id", subjectId,
			"holder_id", holderId,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to recheck certificate",
		)
		return
	}
	writeJSON(w, http.StatusOK, certificateResponseFromRecord(record))
}

// handleVerify handles
// GET /api/v1/certificates/{holderId}/{subjectId}/verify and asks
// the ledger directly, bypassing local records
func (a *Api) handleVerify(w http.ResponseWriter, r *http.Request) {
	holderId := r.PathValue("holderId")
	subjectId := r.PathValue("subjectId")
	verified, err := a.engine.Verify(r.Context(), subjectId, holderId)
	if err != nil {
		a.logger.Error(
			"failed to verify certificate",
			"subject_id", subjectId,
			"holder_id", holderId,
			"error", err,
		)
		writeError(
			w,
			http.StatusBadGateway,
			"Bad Gateway",
			"failed to verify certificate against ledger",
		)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{
		SubjectId: subjectId,
		HolderId:  holderId,
		Verified:  verified,
	})
}
