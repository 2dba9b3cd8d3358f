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

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrNotFound is returned when the ledger has no result for the
// requested item. For receipts this usually means the transaction has
// not yet been mined and the caller should try again later.
var ErrNotFound = errors.New("not found on ledger")

// InsufficientFundsError is returned when the submitting account
// cannot cover the estimated cost of an operation
type InsufficientFundsError struct {
	Balance *big.Int
	Cost    *big.Int
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"insufficient funds: balance %s below estimated cost %s",
		e.Balance.String(),
		e.Cost.String(),
	)
}

// Certificate is a certificate record as stored on the ledger
type Certificate struct {
	SubjectId string
	HolderId  string
	IssuedAt  time.Time
	Exists    bool
}

// Receipt is the ledger's final report for a submitted transaction
type Receipt struct {
	TxId        string
	Success     bool
	GasUsed     uint64
	GasLimit    uint64
	BlockNumber uint64
	Raw         []byte
}

// ExhaustedGas reports whether the transaction consumed its entire
// gas allotment, the signature of running out of budget on-chain
func (r *Receipt) ExhaustedGas() bool {
	return r.GasLimit > 0 && r.GasUsed >= r.GasLimit
}

// Client is the interface to the certificate ledger. Implementations
// must be safe for concurrent use.
type Client interface {
	// SuggestGasPrice returns the network's current price per gas unit
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// EstimateGas returns the gas required to issue a certificate for
	// the given pair
	EstimateGas(
		ctx context.Context,
		subjectId string,
		holderId string,
	) (uint64, error)
	// Balance returns the submitting account's current balance
	Balance(ctx context.Context) (*big.Int, error)
	// Submit sends an issuance transaction and returns its identifier
	// as soon as the ledger accepts it. It does not wait for the
	// transaction to be mined.
	Submit(
		ctx context.Context,
		subjectId string,
		holderId string,
		gasPrice *big.Int,
		gasLimit uint64,
	) (string, error)
	// Receipt fetches the receipt for a submitted transaction. Returns
	// ErrNotFound until the transaction has been mined.
	Receipt(ctx context.Context, txId string) (*Receipt, error)
	// GetCertificate reads the on-ledger certificate record for the
	// given pair. Returns ErrNotFound if none exists.
	GetCertificate(
		ctx context.Context,
		subjectId string,
		holderId string,
	) (*Certificate, error)
	// ListCertificates returns all on-ledger certificates for a holder
	ListCertificates(
		ctx context.Context,
		holderId string,
	) ([]Certificate, error)
	// Close releases any resources held by the client
	Close()
}
