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
	"time"

	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/query"
)

// RootResponse is the response for GET /
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// ErrorResponse is the standard error response body
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// IssueRequest is the request body for POST /api/v1/certificates
type IssueRequest struct {
	SubjectId string `json:"subject_id"`
	HolderId  string `json:"holder_id"`
}

// CertificateResponse describes a certificate record or merged view
type CertificateResponse struct {
	SubjectId    string    `json:"subject_id"`
	HolderId     string    `json:"holder_id"`
	SubjectName  string    `json:"subject_name,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	TxId         string    `json:"tx_id,omitempty"`
	Status       string    `json:"status"`
	LastError    string    `json:"last_error,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	Source       string    `json:"source,omitempty"`
}

// VerifyResponse is the response for the ledger verification endpoint
type VerifyResponse struct {
	SubjectId string `json:"subject_id"`
	HolderId  string `json:"holder_id"`
	Verified  bool   `json:"verified"`
}

func certificateResponseFromRecord(
	record *models.Certificate,
) CertificateResponse {
	return CertificateResponse{
		SubjectId:    record.SubjectID,
		HolderId:     record.HolderID,
		SubjectName:  record.SubjectName,
		CategoryName: record.CategoryName,
		TxId:         record.TxID,
		Status:       string(record.Status),
		LastError:    record.LastError,
		IssuedAt:     record.IssuedAt,
	}
}

func certificateResponseFromView(
	view *query.CertificateView,
) CertificateResponse {
	return CertificateResponse{
		SubjectId:    view.SubjectId,
		HolderId:     view.HolderId,
		SubjectName:  view.SubjectName,
		CategoryName: view.CategoryName,
		TxId:         view.TxId,
		Status:       string(view.Status),
		LastError:    view.LastError,
		IssuedAt:     view.IssuedAt,
		Source:       string(view.Source),
	}
}
