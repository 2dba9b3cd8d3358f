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
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// registryABI describes the certificate registry contract interface
const registryABI = `[
  {
    "type": "function",
    "name": "issueCertificate",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "courseId", "type": "string"},
      {"name": "userId", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getCertificate",
    "stateMutability": "view",
    "inputs": [
      {"name": "courseId", "type": "string"},
      {"name": "userId", "type": "string"}
    ],
    "outputs": [
      {
        "name": "cert",
        "type": "tuple",
        "components": [
          {"name": "courseId", "type": "string"},
          {"name": "userId", "type": "string"},
          {"name": "timestamp", "type": "uint256"},
          {"name": "exists", "type": "bool"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getCertificatesForUser",
    "stateMutability": "view",
    "inputs": [
      {"name": "userId", "type": "string"}
    ],
    "outputs": [
      {
        "name": "certs",
        "type": "tuple[]",
        "components": [
          {"name": "courseId", "type": "string"},
          {"name": "userId", "type": "string"},
          {"name": "timestamp", "type": "uint256"},
          {"name": "exists", "type": "bool"}
        ]
      }
    ]
  }
]`

// registryCertificate mirrors the contract's certificate tuple
type registryCertificate struct {
	CourseId  string
	UserId    string
	Timestamp *big.Int
	Exists    bool
}

// EthereumConfig describes the Ethereum ledger client configuration
type EthereumConfig struct {
	// Endpoint is the JSON-RPC URL of the Ethereum node
	Endpoint string
	// ContractAddress is the deployed registry contract address
	ContractAddress string
	// PrivateKey is the hex-encoded key of the submitting account
	PrivateKey string
	// ChainId identifies the network for transaction signing
	ChainId *big.Int
}

// EthereumClient talks to the certificate registry contract on an
// Ethereum network
type EthereumClient struct {
	client          *ethclient.Client
	contractAddress common.Address
	contractAbi     abi.ABI
	privateKey      *ecdsa.PrivateKey
	accountAddress  common.Address
	chainId         *big.Int
}

// NewEthereumClient creates a new Ethereum ledger client
func NewEthereumClient(cfg *EthereumConfig) (*EthereumClient, error) {
	if cfg == nil {
		return nil, errors.New("no configuration provided")
	}
	if cfg.ChainId == nil {
		return nil, errors.New("no chain ID provided")
	}
	contractAbi, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	privateKey, err := crypto.HexToECDSA(
		strings.TrimPrefix(cfg.PrivateKey, "0x"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	client, err := ethclient.Dial(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Endpoint, err)
	}
	return &EthereumClient{
		client:          client,
		contractAddress: common.HexToAddress(cfg.ContractAddress),
		contractAbi:     contractAbi,
		privateKey:      privateKey,
		accountAddress:  crypto.PubkeyToAddress(privateKey.PublicKey),
		chainId:         cfg.ChainId,
	}, nil
}

func (c *EthereumClient) SuggestGasPrice(
	ctx context.Context,
) (*big.Int, error) {
	return c.client.SuggestGasPrice(ctx)
}

func (c *EthereumClient) EstimateGas(
	ctx context.Context,
	subjectId string,
	holderId string,
) (uint64, error) {
	callData, err := c.contractAbi.Pack(
		"issueCertificate",
		subjectId,
		holderId,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to encode call: %w", err)
	}
	return c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.accountAddress,
		To:   &c.contractAddress,
		Data: callData,
	})
}

func (c *EthereumClient) Balance(ctx context.Context) (*big.Int, error) {
	return c.client.BalanceAt(ctx, c.accountAddress, nil)
}

func (c *EthereumClient) Submit(
	ctx context.Context,
	subjectId string,
	holderId string,
	gasPrice *big.Int,
	gasLimit uint64,
) (string, error) {
	callData, err := c.contractAbi.Pack(
		"issueCertificate",
		subjectId,
		holderId,
	)
	if err != nil {
		return "", fmt.Errorf("failed to encode call: %w", err)
	}
	nonce, err := c.client.PendingNonceAt(ctx, c.accountAddress)
	if err != nil {
		return "", fmt.Errorf("failed to fetch account nonce: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contractAddress,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     callData,
	})
	signedTx, err := types.SignTx(
		tx,
		types.NewEIP155Signer(c.chainId),
		c.privateKey,
	)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", err
	}
	return signedTx.Hash().Hex(), nil
}

func (c *EthereumClient) Receipt(
	ctx context.Context,
	txId string,
) (*Receipt, error) {
	txHash := common.HexToHash(txId)
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// The receipt doesn't carry the gas limit, so fetch the original
	// transaction for the budget-exhaustion check
	tx, _, err := c.client.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rawReceipt, err := receipt.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}
	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	return &Receipt{
		TxId:        txId,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:     receipt.GasUsed,
		GasLimit:    tx.Gas(),
		BlockNumber: blockNumber,
		Raw:         rawReceipt,
	}, nil
}

func (c *EthereumClient) GetCertificate(
	ctx context.Context,
	subjectId string,
	holderId string,
) (*Certificate, error) {
	callData, err := c.contractAbi.Pack("getCertificate", subjectId, holderId)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}
	resp, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contractAddress,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, err
	}
	out, err := c.contractAbi.Unpack("getCertificate", resp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	cert := *abi.ConvertType(
		out[0],
		new(registryCertificate),
	).(*registryCertificate)
	if !cert.Exists {
		return nil, ErrNotFound
	}
	return &Certificate{
		SubjectId: cert.CourseId,
		HolderId:  cert.UserId,
		IssuedAt:  time.Unix(cert.Timestamp.Int64(), 0),
		Exists:    true,
	}, nil
}

func (c *EthereumClient) ListCertificates(
	ctx context.Context,
	holderId string,
) ([]Certificate, error) {
	callData, err := c.contractAbi.Pack("getCertificatesForUser", holderId)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}
	resp, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contractAddress,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, err
	}
	out, err := c.contractAbi.Unpack("getCertificatesForUser", resp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	certs := *abi.ConvertType(
		out[0],
		new([]registryCertificate),
	).(*[]registryCertificate)
	ret := make([]Certificate, 0, len(certs))
	for _, cert := range certs {
		if !cert.Exists {
			continue
		}
		ret = append(ret, Certificate{
			SubjectId: cert.CourseId,
			HolderId:  cert.UserId,
			IssuedAt:  time.Unix(cert.Timestamp.Int64(), 0),
			Exists:    true,
		})
	}
	return ret, nil
}

func (c *EthereumClient) Close() {
	c.client.Close()
}
