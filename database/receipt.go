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

package database

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

var ErrReceiptNotFound = errors.New("receipt not found")

func receiptKey(txId string) []byte {
	return fmt.Appendf(nil, "receipt/%s", txId)
}

// PutReceipt archives the raw ledger receipt for the given transaction.
// Receipts are written once and never updated.
func (d *Database) PutReceipt(txId string, receipt []byte) error {
	err := d.receipts.Update(func(txn *badger.Txn) error {
		return txn.Set(receiptKey(txId), receipt)
	})
	if err != nil {
		return fmt.Errorf("failed to store receipt: %w", err)
	}
	return nil
}

// GetReceipt returns the archived raw receipt for the given transaction
func (d *Database) GetReceipt(txId string) ([]byte, error) {
	var ret []byte
	err := d.receipts.View(func(txn *badger.Txn) error {
		item, err := txn.Get(receiptKey(txId))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrReceiptNotFound
			}
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}
