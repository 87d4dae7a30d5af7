// Package chain defines the narrow boundary to the blockchain provider.
// The sync processor never dials or signs on its own: reads go through
// LogSource/HeaderSource/ContractCaller and writes through a TxSubmitter
// supplied by the embedding application. ethclient.Client satisfies the
// read-side interfaces directly.
package chain

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogSource retrieves raw contract logs for a block range.
type LogSource interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// HeaderSource resolves block headers; nil number means latest.
type HeaderSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TxSubmitter hands calldata to the external signing and connectivity
// provider. Nonce management, gas estimation and signing happen behind it.
type TxSubmitter interface {
	SubmitTx(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// TxConfirmer waits for a submitted transaction to be mined. The wait is
// open-ended; callers bound it with the context.
type TxConfirmer interface {
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}
