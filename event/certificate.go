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

package event

// CertificateSubmittedEventType is the event type for accepted ledger submissions
const CertificateSubmittedEventType = EventType("certificate.submitted")

// CertificateSubmittedEvent is emitted when the ledger accepts an
// issuance submission and the record transitions to pending
type CertificateSubmittedEvent struct {
	SubjectId string
	HolderId  string
	TxId      string
}

// CertificateStateEventType is the event type for record status transitions
const CertificateStateEventType = EventType("certificate.state")

// CertificateStateEvent is emitted whenever a certificate record
// changes status, including transitions driven by reconciliation
type CertificateStateEvent struct {
	SubjectId string
	HolderId  string
	TxId      string
	OldStatus string
	NewStatus string
	Reason    string
}
