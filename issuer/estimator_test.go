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
	"testing"

	"github.com/edulith/sigil/issuer"
	"github.com/edulith/sigil/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateDefaults(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.GasPrice = big.NewInt(1_000_000_000)
	mock.GasEstimate = 100_000
	mock.AccountBalance = big.NewInt(1_000_000_000_000_000)

	est := issuer.NewEstimator(mock, 0, 0)
	estimate, err := est.Estimate(context.Background(), "course-101", "user-1")
	require.NoError(t, err)

	// 70% of the network price
	assert.Equal(t, big.NewInt(700_000_000), estimate.GasPrice)
	assert.Equal(t, uint64(100_000), estimate.GasLimit)
	// price * gas * 1.05
	assert.Equal(t, big.NewInt(73_500_000_000_000), estimate.Cost)
}

func TestEstimateCustomRatio(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.GasPrice = big.NewInt(2_000_000_000)
	mock.GasEstimate = 50_000
	mock.AccountBalance = big.NewInt(1_000_000_000_000_000)

	est := issuer.NewEstimator(mock, 0.25, 0.10)
	estimate, err := est.Estimate(context.Background(), "course-101", "user-1")
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(500_000_000), estimate.GasPrice)
	// price * gas * 1.10
	assert.Equal(t, big.NewInt(27_500_000_000_000), estimate.Cost)
}

func TestEstimateInsufficientFunds(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.GasPrice = big.NewInt(1_000_000_000)
	mock.GasEstimate = 100_000
	// One unit short of the buffered cost
	mock.AccountBalance = big.NewInt(73_499_999_999_999)

	est := issuer.NewEstimator(mock, 0, 0)
	_, err := est.Estimate(context.Background(), "course-101", "user-1")
	var fundsErr ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, big.NewInt(73_500_000_000_000), fundsErr.Cost)
	assert.Equal(t, mock.AccountBalance, fundsErr.Balance)
}

func TestEstimateExactBalance(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.GasPrice = big.NewInt(1_000_000_000)
	mock.GasEstimate = 100_000
	mock.AccountBalance = big.NewInt(73_500_000_000_000)

	est := issuer.NewEstimator(mock, 0, 0)
	_, err := est.Estimate(context.Background(), "course-101", "user-1")
	assert.NoError(t, err)
}

func TestEstimateNetworkError(t *testing.T) {
	mock := ledger.NewMockClient()
	mock.SuggestGasPriceErr = errors.New("connection refused")

	est := issuer.NewEstimator(mock, 0, 0)
	_, err := est.Estimate(context.Background(), "course-101", "user-1")
	require.Error(t, err)
	var fundsErr ledger.InsufficientFundsError
	assert.False(t, errors.As(err, &fundsErr))
}
