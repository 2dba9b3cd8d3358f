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
	"context"

	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/query"
)

// CertificateEngine is the interface the API server uses to drive
// issuance and answer queries. This decouples the HTTP server from
// the concrete engine and enables testing with mock implementations.
type CertificateEngine interface {
	// Issue submits an issuance operation for the pair
	Issue(
		ctx context.Context,
		subjectId string,
		holderId string,
	) (*models.Certificate, error)

	// Get returns the merged view for the pair, or nil if unknown
	Get(
		ctx context.Context,
		subjectId string,
		holderId string,
	) (*query.CertificateView, error)

	// ListForHolder returns the merged certificate list for a holder
	ListForHolder(
		ctx context.Context,
		holderId string,
	) ([]query.CertificateView, error)

	// Recheck performs an immediate receipt check for the pair
	Recheck(
		ctx context.Context,
		subjectId string,
		holderId string,
	) (*models.Certificate, error)

	// Verify asks the ledger directly whether the certificate exists
	Verify(
		ctx context.Context,
		subjectId string,
		holderId string,
	) (bool, error)
}
