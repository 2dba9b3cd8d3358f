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

package issuer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/edulith/sigil/ledger"
)

const (
	// DefaultPriceRatio is the fraction of the network's suggested gas
	// price used for submissions. Certificate issuance is not
	// latency-sensitive, so underbidding the network trades
	// confirmation time for cost.
	DefaultPriceRatio = 0.70
	// DefaultCostBuffer is the safety margin applied to the estimated
	// total cost before the balance check
	DefaultCostBuffer = 0.05

	// ratioScale converts the float configuration knobs to basis
	// points so fee math stays in integer space
	ratioScale = 10_000
)

// Estimate is a priced issuance plan: the gas price to bid, the gas
// limit to allot and the buffered total cost used for the balance check
type Estimate struct {
	GasPrice *big.Int
	GasLimit uint64
	Cost     *big.Int
}

// Estimator prices issuance operations against the current network
// conditions and verifies the account can afford them
type Estimator struct {
	client    ledger.Client
	ratioBps  int64
	bufferBps int64
}

// NewEstimator creates an estimator using the given price ratio and
// cost buffer. Values of zero select the defaults.
func NewEstimator(
	client ledger.Client,
	priceRatio float64,
	costBuffer float64,
) *Estimator {
	if priceRatio <= 0 {
		priceRatio = DefaultPriceRatio
	}
	if costBuffer <= 0 {
		costBuffer = DefaultCostBuffer
	}
	return &Estimator{
		client:    client,
		ratioBps:  int64(priceRatio*ratioScale + 0.5),
		bufferBps: int64(costBuffer*ratioScale + 0.5),
	}
}

// Estimate prices an issuance for the given pair. Returns a typed
// ledger.InsufficientFundsError when the account balance cannot cover
// the buffered cost.
func (e *Estimator) Estimate(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*Estimate, error) {
	networkPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	gasLimit, err := e.client.EstimateGas(ctx, subjectId, holderId)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	balance, err := e.client.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	// Bid below the network price
	gasPrice := new(big.Int).Mul(networkPrice, big.NewInt(e.ratioBps))
	gasPrice.Div(gasPrice, big.NewInt(ratioScale))
	// Total cost with safety margin on top
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	cost.Mul(cost, big.NewInt(ratioScale+e.bufferBps))
	cost.Div(cost, big.NewInt(ratioScale))
	if balance.Cmp(cost) < 0 {
		return nil, ledger.InsufficientFundsError{
			Balance: balance,
			Cost:    cost,
		}
	}
	return &Estimate{
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		Cost:     cost,
	}, nil
}
