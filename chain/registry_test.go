package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamassu-labs/mentowatch/am"
)

func TestNewRegistryDefaults(t *testing.T) {
	r := NewRegistry(am.RegistryConfig{})

	assert.Len(t, r.Tokens, 8)
	assert.Len(t, r.ReserveAssets, 3)
	assert.Len(t, r.ReserveAddrs, 2)

	cusd, ok := r.Token("cUSD")
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x765DE816845861e75A25fCA122bb6898B8B1282a"), cusd.Address)
	assert.Equal(t, 1.0, cusd.PegUSD)
	assert.False(t, cusd.Native)
}

func TestNewRegistryCELOIsNative(t *testing.T) {
	r := NewRegistry(am.RegistryConfig{})
	for _, a := range r.ReserveAssets {
		if a.Symbol == "CELO" {
			assert.True(t, a.Native)
			return
		}
	}
	t.Fatal("CELO missing from reserve assets")
}

func TestNewRegistryOverrides(t *testing.T) {
	r := NewRegistry(am.RegistryConfig{
		Tokens: map[string]string{
			"cUSD": "0x0000000000000000000000000000000000000001", // testnet override
			"cXYZ": "0x0000000000000000000000000000000000000002", // addition
		},
		Pegs:         map[string]float64{"cXYZ": 0.5},
		ReserveAddrs: []string{"0x0000000000000000000000000000000000000003"},
	})

	cusd, ok := r.Token("cUSD")
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000001"), cusd.Address)

	cxyz, ok := r.Token("cXYZ")
	require.True(t, ok)
	assert.Equal(t, 0.5, cxyz.PegUSD)

	assert.Len(t, r.Tokens, 9)
	require.Len(t, r.ReserveAddrs, 1)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000003"), r.ReserveAddrs[0])
}

func TestTokensSortedBySymbol(t *testing.T) {
	r := NewRegistry(am.RegistryConfig{})
	for i := 1; i < len(r.Tokens); i++ {
		assert.Less(t, r.Tokens[i-1].Symbol, r.Tokens[i].Symbol)
	}
}

func TestUnknownToken(t *testing.T) {
	r := NewRegistry(am.RegistryConfig{})
	_, ok := r.Token("cusd") // case-sensitive
	assert.False(t, ok)
}
