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

package sigil_test

import (
	"context"
	"testing"
	"time"

	sigil "github.com/edulith/sigil"
	"github.com/edulith/sigil/database/models"
	"github.com/edulith/sigil/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineIssueAndReconcile(t *testing.T) {
	mock := ledger.NewMockClient()
	cfg := sigil.NewConfig(
		sigil.WithLedgerClient(mock),
		sigil.WithDataDir(t.TempDir()),
		sigil.WithSweepInterval(20*time.Millisecond),
		sigil.WithRecheckInterval(20*time.Millisecond),
	)
	engine, err := sigil.New(cfg)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() {
		runErr <- engine.Run()
	}()
	t.Cleanup(func() {
		_ = engine.Stop()
	})
	require.Eventually(t, func() bool {
		return engine.Database() != nil
	}, 5*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	record, err := engine.Issue(ctx, "course-101", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateStatusPending, record.Status)
	require.NotEmpty(t, record.TxID)

	// Exists sees the in-progress record
	exists, err := engine.Exists(ctx, "course-101", "user-1")
	require.NoError(t, err)
	assert.True(t, exists)

	// The transaction gets mined with a success receipt
	mock.SetReceipt(record.TxID, &ledger.Receipt{
		Success:  true,
		GasUsed:  84_123,
		GasLimit: 100_000,
	})
	mock.SetCertificate("course-101", "user-1")

	require.Eventually(t, func() bool {
		view, err := engine.Get(ctx, "course-101", "user-1")
		if err != nil || view == nil {
			return false
		}
		return view.Status == models.CertificateStatusConfirmed
	}, 5*time.Second, 10*time.Millisecond)

	// Ledger-side verification agrees
	verified, err := engine.Verify(ctx, "course-101", "user-1")
	require.NoError(t, err)
	assert.True(t, verified)

	require.NoError(t, engine.Stop())
	require.NoError(t, <-runErr)
}
