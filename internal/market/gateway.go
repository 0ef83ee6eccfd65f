// Package market orchestrates reads and writes against the BuyMyRoom
// marketplace contract and its HouseToken utility token.
package market

import (
	"context"
	"math/big"
)

// Receipt reports a settled write. A write is complete only once the
// transaction is mined, not when it enters the mempool.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// HouseInfo is a read snapshot of one house. Price is in base units and is
// only meaningful while IsForSale is true.
type HouseInfo struct {
	HouseID   uint64
	Owner     string
	Price     *big.Int
	ListedAt  uint64
	IsForSale bool
}

// Gateway is the only surface allowed to touch the two contracts. Reads are
// idempotent and side-effect-free; writes are non-idempotent and settle at
// the on-chain finality boundary. Amounts cross this boundary as integer
// base units, addresses as hex strings.
type Gateway interface {
	// marketplace writes
	AirdropHouses(ctx context.Context, from string) (Receipt, error)
	ListHouse(ctx context.Context, from string, houseID uint64, price *big.Int) (Receipt, error)
	BuyHouseWithTokens(ctx context.Context, from string, houseID uint64) (Receipt, error)
	// BuyTokens exchanges attached native currency for house tokens.
	BuyTokens(ctx context.Context, from string, value *big.Int) (Receipt, error)

	// token write
	Approve(ctx context.Context, from, spender string, amount *big.Int) (Receipt, error)

	// reads
	GetUserHouses(ctx context.Context, account string) ([]uint64, error)
	GetHousesForSale(ctx context.Context) ([]uint64, error)
	GetHouseOwner(ctx context.Context, houseID uint64) (string, error)
	GetHouseInfo(ctx context.Context, houseID uint64) (HouseInfo, error)
	GetUserTokenBalance(ctx context.Context, account string) (*big.Int, error)
}

// HealthChecker is implemented by gateways that can probe their RPC backend.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
