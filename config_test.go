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
	"testing"
	"time"

	sigil "github.com/edulith/sigil"
	"github.com/edulith/sigil/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	cfg := sigil.NewConfig(
		sigil.WithLedgerClient(ledger.NewMockClient()),
		sigil.WithSweepInterval(5 * time.Second),
	)
	engine, err := sigil.New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, engine.EventBus())
}

func TestNewEngineNoLedgerClient(t *testing.T) {
	cfg := sigil.NewConfig()
	_, err := sigil.New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ledger client")
}

func TestNewEngineInvalidPriceRatio(t *testing.T) {
	cfg := sigil.NewConfig(
		sigil.WithLedgerClient(ledger.NewMockClient()),
		sigil.WithPriceRatio(1.5),
	)
	_, err := sigil.New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price ratio")
}

func TestNewEngineNegativeCostBuffer(t *testing.T) {
	cfg := sigil.NewConfig(
		sigil.WithLedgerClient(ledger.NewMockClient()),
		sigil.WithCostBuffer(-0.1),
	)
	_, err := sigil.New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cost buffer")
}
