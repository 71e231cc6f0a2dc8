package chain

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lamassu-labs/mentowatch/am"
)

// Asset is a token the monitor reads from chain.
type Asset struct {
	Symbol  string
	Address common.Address
	// PegUSD is the fiat value of one token for stablecoins (0 for
	// reserve assets, which are priced by the prices feed instead).
	PegUSD float64
	// Native marks the chain's native asset (CELO), read via
	// BalanceAt instead of balanceOf.
	Native bool
}

// Registry holds the set of monitored Mento stablecoins, the reserve
// collateral assets, and the reserve custody addresses.
type Registry struct {
	Tokens        []Asset
	ReserveAssets []Asset
	ReserveAddrs  []common.Address
}

// Celo mainnet addresses. Token addresses are the Mento stablecoin
// proxy contracts; the reserve addresses are the Mento Reserve proxy
// and its operational multisig.
var (
	celoToken = common.HexToAddress("0x471EcE3750Da237f93B8E339c536989b8978a438")

	mainnetTokens = map[string]string{
		"cUSD":  "0x765DE816845861e75A25fCA122bb6898B8B1282a",
		"cEUR":  "0xD8763CBa276a3738E6DE85b4b3bF5FDed6D6cA73",
		"cREAL": "0xe8537a3d056DA446677B9E9d6c5dB704EaAb4787",
		"eXOF":  "0x73F93dcc49cB8A239e2032663e9475dd5ef29A08",
		"cKES":  "0x456a3D042C0DbD3db53D5489e98dFb038553B0d0",
		"PUSO":  "0x105d4A9306D2E55a71d2Eb95B81553AE1dC20d7B",
		"cCOP":  "0x8A567e2aE79CA692Bd748aB832081C45de4041eA",
		"cGHS":  "0xfAeA5F3404bbA20D3cc2f8C4B0A888F55a3c7313",
	}

	// Default USD pegs. eXOF (CFA franc), cKES (Kenyan shilling),
	// PUSO (Philippine peso), cCOP (Colombian peso) and cGHS (Ghanaian
	// cedi) track volatile fiat; these are coarse defaults that the
	// prices feed or registry.pegs config refine.
	mainnetPegs = map[string]float64{
		"cUSD":  1.0,
		"cEUR":  1.08,
		"cREAL": 0.18,
		"eXOF":  0.0016,
		"cKES":  0.0078,
		"PUSO":  0.017,
		"cCOP":  0.00024,
		"cGHS":  0.065,
	}

	mainnetReserveAssets = map[string]string{
		"CELO": celoToken.Hex(),
		"USDC": "0xcebA9300f2b948710d2653dD7B07f33A8B32118C",
		"USDT": "0x48065fbBE25f71C9282ddf5e1cD6D6A887483D5e",
	}

	mainnetReserveAddrs = []string{
		"0x9380fA34Fd9e4Fd14c06305fd7B6199089eD4eb9", // Reserve proxy
		"0x87647780180B8F55980C7D3fFeFe08a9B29e9aE1", // Custody multisig
	}
)

// NewRegistry builds the asset registry from the built-in mainnet set,
// applying any overrides from config. Config entries with the same
// symbol replace the built-in address; new symbols are added.
func NewRegistry(cfg am.RegistryConfig) *Registry {
	tokens := map[string]string{}
	for s, a := range mainnetTokens {
		tokens[s] = a
	}
	for s, a := range cfg.Tokens {
		tokens[s] = a
	}

	pegs := map[string]float64{}
	for s, p := range mainnetPegs {
		pegs[s] = p
	}
	for s, p := range cfg.Pegs {
		pegs[s] = p
	}

	reserveAssets := map[string]string{}
	for s, a := range mainnetReserveAssets {
		reserveAssets[s] = a
	}
	for s, a := range cfg.ReserveAssets {
		reserveAssets[s] = a
	}

	r := &Registry{}
	for _, s := range sortedKeys(tokens) {
		peg := pegs[s]
		if peg == 0 {
			peg = 1.0
		}
		r.Tokens = append(r.Tokens, Asset{
			Symbol:  s,
			Address: common.HexToAddress(tokens[s]),
			PegUSD:  peg,
		})
	}
	for _, s := range sortedKeys(reserveAssets) {
		addr := common.HexToAddress(reserveAssets[s])
		r.ReserveAssets = append(r.ReserveAssets, Asset{
			Symbol:  s,
			Address: addr,
			Native:  addr == celoToken && s == "CELO",
		})
	}

	addrs := cfg.ReserveAddrs
	if len(addrs) == 0 {
		addrs = mainnetReserveAddrs
	}
	for _, a := range addrs {
		r.ReserveAddrs = append(r.ReserveAddrs, common.HexToAddress(a))
	}

	return r
}

// Token looks up a monitored stablecoin by symbol (case-sensitive).
func (r *Registry) Token(symbol string) (Asset, bool) {
	for _, t := range r.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Asset{}, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
