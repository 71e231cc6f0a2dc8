package snapshot

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/lamassu-labs/mentowatch/chain"
	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/internal/util"
	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/sym"
)

// ChainReader is the chain access the collector needs. *chain.Client
// satisfies it; tests substitute a fake.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TotalSupply(ctx context.Context, addr common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	Decimals(ctx context.Context, addr common.Address) (uint8, error)
}

// RateSource resolves USD rates for reserve assets.
type RateSource interface {
	Rate(symbol string) (float64, bool)
}

// Collector reads one snapshot's worth of chain state.
type Collector struct {
	reader   ChainReader
	registry *chain.Registry
	rates    RateSource
	workers  int

	decMu    sync.Mutex
	decimals map[common.Address]uint8
}

// NewCollector builds a collector. workers bounds concurrent token
// reads per cycle.
func NewCollector(reader ChainReader, registry *chain.Registry, rates RateSource, workers int) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{
		reader:   reader,
		registry: registry,
		rates:    rates,
		workers:  workers,
		decimals: map[common.Address]uint8{},
	}
}

// Collect reads every token supply and reserve holding and assembles a
// snapshot. A failed token read fails the whole snapshot; partial
// snapshots would corrupt the supply history. A missing price does
// not fail collection, it only nulls out the ratio.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	block, err := c.reader.BlockNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading block number")
	}

	snap := &Snapshot{
		ID:          uuid.NewString(),
		TakenAt:     start.UTC(),
		BlockNumber: block,
	}

	tokens, err := c.collectTokens(ctx)
	if err != nil {
		return nil, err
	}
	snap.Tokens = tokens

	reserve, err := c.collectReserve(ctx)
	if err != nil {
		return nil, err
	}
	snap.Reserve = reserve

	c.valuate(snap)
	snap.Duration = time.Since(start)

	logger.Infow(sym.Snapshot+" snapshot collected",
		logger.FieldSnapshotID, snap.ID,
		logger.FieldBlock, block,
		logger.FieldTokens, len(snap.Tokens),
		logger.FieldRatio, ratioField(snap.ReserveRatio),
		logger.FieldDurationMS, snap.Duration.Milliseconds(),
	)
	return snap, nil
}

func (c *Collector) collectTokens(ctx context.Context) ([]TokenSupply, error) {
	assets := c.registry.Tokens
	results := make([]TokenSupply, len(assets))
	errs := make([]error, len(assets))

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	for i, asset := range assets {
		wg.Add(1)
		go func(i int, asset chain.Asset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = c.readToken(ctx, asset)
		}(i, asset)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", assets[i].Symbol)
		}
	}
	return results, nil
}

func (c *Collector) readToken(ctx context.Context, asset chain.Asset) (TokenSupply, error) {
	raw, err := c.reader.TotalSupply(ctx, asset.Address)
	if err != nil {
		return TokenSupply{}, err
	}
	dec, err := c.readDecimals(ctx, asset.Address)
	if err != nil {
		return TokenSupply{}, err
	}

	supply := scale(raw, dec)
	ts := TokenSupply{
		Symbol:      asset.Symbol,
		Address:     asset.Address.Hex(),
		TotalSupply: raw,
		Decimals:    dec,
		Supply:      supply,
		PegUSD:      asset.PegUSD,
		SupplyUSD:   supply * asset.PegUSD,
	}
	logger.Debugw(sym.Chain+" token read", logger.FieldToken, asset.Symbol, "supply", supply)
	return ts, nil
}

func (c *Collector) collectReserve(ctx context.Context) ([]ReserveHolding, error) {
	assets := c.registry.ReserveAssets
	results := make([]ReserveHolding, len(assets))
	errs := make([]error, len(assets))

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	for i, asset := range assets {
		wg.Add(1)
		go func(i int, asset chain.Asset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = c.readReserveAsset(ctx, asset)
		}(i, asset)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "reading reserve %s", assets[i].Symbol)
		}
	}
	return results, nil
}

// readReserveAsset sums one asset's balance across all reserve custody
// addresses.
func (c *Collector) readReserveAsset(ctx context.Context, asset chain.Asset) (ReserveHolding, error) {
	total := new(big.Int)
	for _, holder := range c.registry.ReserveAddrs {
		var bal *big.Int
		var err error
		if asset.Native {
			bal, err = c.reader.NativeBalance(ctx, holder)
		} else {
			bal, err = c.reader.BalanceOf(ctx, asset.Address, holder)
		}
		if err != nil {
			return ReserveHolding{}, err
		}
		total.Add(total, bal)
	}

	dec := uint8(18)
	if !asset.Native {
		var err error
		dec, err = c.readDecimals(ctx, asset.Address)
		if err != nil {
			return ReserveHolding{}, err
		}
	}

	amount := scale(total, dec)
	h := ReserveHolding{
		Symbol:   asset.Symbol,
		Address:  asset.Address.Hex(),
		Balance:  total,
		Decimals: dec,
		Amount:   amount,
	}
	if rate, ok := c.rates.Rate(asset.Symbol); ok {
		h.PriceUSD = util.Ptr(rate)
		h.ValueUSD = util.Ptr(amount * rate)
	} else {
		logger.Warnw(sym.Reserve+" no USD rate for reserve asset", logger.FieldToken, asset.Symbol)
	}
	return h, nil
}

// readDecimals caches decimals per contract; they never change.
func (c *Collector) readDecimals(ctx context.Context, addr common.Address) (uint8, error) {
	c.decMu.Lock()
	if dec, ok := c.decimals[addr]; ok {
		c.decMu.Unlock()
		return dec, nil
	}
	c.decMu.Unlock()

	dec, err := c.reader.Decimals(ctx, addr)
	if err != nil {
		// Every Mento asset is 18 decimals; a failed read should not
		// sink the cycle. Do not cache so a healthy read can correct it.
		logger.Warnw(sym.Chain+" decimals read failed, assuming 18",
			logger.FieldAddress, addr.Hex(), logger.FieldError, err)
		return 18, nil
	}

	c.decMu.Lock()
	c.decimals[addr] = dec
	c.decMu.Unlock()
	return dec, nil
}

// valuate fills in the USD aggregates. The ratio stays nil unless
// every reserve asset carries a value.
func (c *Collector) valuate(snap *Snapshot) {
	supplyUSD := 0.0
	for _, t := range snap.Tokens {
		supplyUSD += t.SupplyUSD
	}
	snap.TotalSupplyUSD = util.Ptr(supplyUSD)

	reserveUSD := 0.0
	complete := true
	for _, h := range snap.Reserve {
		if h.ValueUSD == nil {
			complete = false
			continue
		}
		reserveUSD += *h.ValueUSD
	}
	if !complete {
		return
	}
	snap.ReserveValueUSD = util.Ptr(reserveUSD)
	if supplyUSD > 0 {
		snap.ReserveRatio = util.Ptr(reserveUSD / supplyUSD)
	}
}

// scale converts a raw token amount to a float using the token's
// decimals. Precision loss past float64's 53 bits is acceptable for
// monitoring.
func scale(raw *big.Int, decimals uint8) float64 {
	f := new(big.Float).SetInt(raw)
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, div).Float64()
	return out
}

func ratioField(r *float64) any {
	if r == nil {
		return "n/a"
	}
	return *r
}
