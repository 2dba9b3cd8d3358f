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
	"fmt"
	"math/big"
	"sync"
	"time"
)

// MockClient is an in-memory ledger for testing. All state can be
// inspected and manipulated directly between calls.
type MockClient struct {
	mu sync.Mutex

	// Tunable responses
	GasPrice       *big.Int
	GasEstimate    uint64
	AccountBalance *big.Int

	// Injectable errors, returned once set
	SuggestGasPriceErr error
	EstimateGasErr     error
	BalanceErr         error
	SubmitErr          error
	ReceiptErr         error
	GetCertificateErr  error
	ListErr            error

	// Receipts by transaction ID. Missing entries return ErrNotFound.
	Receipts map[string]*Receipt
	// Certificates present on the mock ledger, keyed by subject/holder
	Certificates map[string]Certificate

	submitCount int
}

// NewMockClient creates a mock ledger with sensible defaults
func NewMockClient() *MockClient {
	return &MockClient{
		GasPrice:       big.NewInt(1_000_000_000),
		GasEstimate:    100_000,
		AccountBalance: big.NewInt(1_000_000_000_000_000_000),
		Receipts:       make(map[string]*Receipt),
		Certificates:   make(map[string]Certificate),
	}
}

func mockCertKey(subjectId string, holderId string) string {
	return subjectId + "/" + holderId
}

func (m *MockClient) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SuggestGasPriceErr != nil {
		return nil, m.SuggestGasPriceErr
	}
	return new(big.Int).Set(m.GasPrice), nil
}

func (m *MockClient) EstimateGas(
	_ context.Context,
	_ string,
	_ string,
) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EstimateGasErr != nil {
		return 0, m.EstimateGasErr
	}
	return m.GasEstimate, nil
}

func (m *MockClient) Balance(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	return new(big.Int).Set(m.AccountBalance), nil
}

func (m *MockClient) Submit(
	_ context.Context,
	subjectId string,
	holderId string,
	_ *big.Int,
	_ uint64,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	m.submitCount++
	return fmt.Sprintf("0xmock%04d", m.submitCount), nil
}

// SubmitCount returns the number of successful submissions made
func (m *MockClient) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCount
}

func (m *MockClient) Receipt(
	_ context.Context,
	txId string,
) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReceiptErr != nil {
		return nil, m.ReceiptErr
	}
	receipt, ok := m.Receipts[txId]
	if !ok {
		return nil, ErrNotFound
	}
	return receipt, nil
}

// SetReceipt installs a receipt for a transaction, simulating the
// transaction being mined
func (m *MockClient) SetReceipt(txId string, receipt *Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt.TxId = txId
	m.Receipts[txId] = receipt
}

func (m *MockClient) GetCertificate(
	_ context.Context,
	subjectId string,
	holderId string,
) (*Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetCertificateErr != nil {
		return nil, m.GetCertificateErr
	}
	cert, ok := m.Certificates[mockCertKey(subjectId, holderId)]
	if !ok {
		return nil, ErrNotFound
	}
	return &cert, nil
}

// SetCertificate installs a certificate on the mock ledger
func (m *MockClient) SetCertificate(subjectId string, holderId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Certificates[mockCertKey(subjectId, holderId)] = Certificate{
		SubjectId: subjectId,
		HolderId:  holderId,
		IssuedAt:  time.Now(),
		Exists:    true,
	}
}

func (m *MockClient) ListCertificates(
	_ context.Context,
	holderId string,
) ([]Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var ret []Certificate
	for _, cert := range m.Certificates {
		if cert.HolderId == holderId {
			ret = append(ret, cert)
		}
	}
	return ret, nil
}

func (m *MockClient) Close() {}
