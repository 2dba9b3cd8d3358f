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

package reconciler

import (
	"testing"
	"time"

	"github.com/edulith/sigil/database"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/event"
	"github.com/edulith/sigil/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// Subscriber delivery can still drain buffered submission events after
// Stop has begun waiting. Such an event must not start a recheck.
func TestSubmittedEventAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	db, err := database.New(&database.Config{
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	mock := ledger.NewMockClient()

	_, _, err = db.CreateCertificateIntent("course-101", "user-1", "", "", nil)
	require.NoError(t, err)
	pending := models.CertificateStatusPending
	txId := "0xlate"
	_, err = db.UpdateCertificate(
		"course-101", "user-1",
		database.CertificateUpdate{
			TxID:   &txId,
			Status: &pending,
		},
		nil,
	)
	require.NoError(t, err)
	// A recheck would confirm immediately if one were started
	mock.SetReceipt(txId, &ledger.Receipt{
		Success:  true,
		GasUsed:  84_123,
		GasLimit: 100_000,
	})

	r, err := New(&Config{
		Database:        db,
		LedgerClient:    mock,
		SweepInterval:   time.Hour,
		RecheckInterval: time.Millisecond,
	})
	require.NoError(t, err)
	r.Start()
	r.Stop()

	r.handleSubmittedEvent(event.NewEvent(
		event.CertificateSubmittedEventType,
		event.CertificateSubmittedEvent{
			SubjectId: "course-101",
			HolderId:  "user-1",
			TxId:      txId,
		},
	))

	// The waitgroup must stay settled once Stop has returned
	settled := make(chan struct{})
	go func() {
		r.doneWg.Wait()
		close(settled)
	}()
	select {
	case <-settled:
	case <-time.After(time.Second):
		t.Fatal("recheck goroutine started after Stop")
	}

	record, err := db.GetCertificate("course-101", "user-1", nil)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.CertificateStatusPending, record.Status)
	require.NoError(t, db.Close())
}
