package snapshot

import (
	"math/big"
	"time"
)

// TokenSupply is one stablecoin's supply reading within a snapshot.
type TokenSupply struct {
	Symbol      string   `json:"symbol"`
	Address     string   `json:"address"`
	TotalSupply *big.Int `json:"-"`
	Decimals    uint8    `json:"decimals"`
	// Supply is TotalSupply scaled by Decimals.
	Supply    float64 `json:"supply"`
	PegUSD    float64 `json:"peg_usd"`
	SupplyUSD float64 `json:"supply_usd"`
}

// ReserveHolding is one collateral asset's balance across the reserve
// addresses. PriceUSD and ValueUSD are nil when no rate is known.
type ReserveHolding struct {
	Symbol   string   `json:"symbol"`
	Address  string   `json:"address"`
	Balance  *big.Int `json:"-"`
	Decimals uint8    `json:"decimals"`
	Amount   float64  `json:"amount"`
	PriceUSD *float64 `json:"price_usd"`
	ValueUSD *float64 `json:"value_usd"`
}

// Snapshot is one complete collection cycle: every stablecoin supply
// plus every reserve holding at (approximately) one block.
//
// ReserveRatio is ReserveValueUSD / TotalSupplyUSD. It is nil whenever
// any reserve asset could not be valued, to avoid reporting a ratio
// that understates collateral.
type Snapshot struct {
	ID              string           `json:"id"`
	TakenAt         time.Time        `json:"taken_at"`
	BlockNumber     uint64           `json:"block_number"`
	Tokens          []TokenSupply    `json:"tokens"`
	Reserve         []ReserveHolding `json:"reserve"`
	TotalSupplyUSD  *float64         `json:"total_supply_usd"`
	ReserveValueUSD *float64         `json:"reserve_value_usd"`
	ReserveRatio    *float64         `json:"reserve_ratio"`
	Duration        time.Duration    `json:"-"`
}

// SupplyDelta is the change in one token's supply over a window,
// comparing the latest snapshot against the closest snapshot at or
// before the window start.
type SupplyDelta struct {
	Symbol     string    `json:"symbol"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	FromSupply float64   `json:"from_supply"`
	ToSupply   float64   `json:"to_supply"`
	Percent    float64   `json:"percent"`
}
