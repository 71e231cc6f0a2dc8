package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/internal/util"
	"github.com/lamassu-labs/mentowatch/snapshot"
)

func init() {
	pterm.DisableColor()
}

func sampleReport() *Report {
	return &Report{
		Snapshot: &snapshot.Snapshot{
			ID:          "snap-1",
			TakenAt:     time.Unix(1700000000, 0).UTC(),
			BlockNumber: 26000000,
			Tokens: []snapshot.TokenSupply{
				{Symbol: "cUSD", Supply: 1234567.89, PegUSD: 1.0, SupplyUSD: 1234567.89},
				{Symbol: "cEUR", Supply: 500000, PegUSD: 1.08, SupplyUSD: 540000},
			},
			Reserve: []snapshot.ReserveHolding{
				{Symbol: "CELO", Amount: 3000000, PriceUSD: util.Ptr(0.5), ValueUSD: util.Ptr(1500000.0)},
				{Symbol: "USDC", Amount: 2000000, PriceUSD: util.Ptr(1.0), ValueUSD: util.Ptr(2000000.0)},
			},
			TotalSupplyUSD:  util.Ptr(1774567.89),
			ReserveValueUSD: util.Ptr(3500000.0),
			ReserveRatio:    util.Ptr(1.972),
			Duration:        340 * time.Millisecond,
		},
		Deltas: []snapshot.SupplyDelta{
			{Symbol: "cUSD", Percent: 2.5},
		},
	}
}

func TestRenderIncludesTokensAndReserve(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "cUSD")
	assert.Contains(t, out, "1,234,567.89")
	assert.Contains(t, out, "CELO")
	assert.Contains(t, out, "block 26000000")
	assert.Contains(t, out, "+2.50%")
	assert.Contains(t, out, "1.972x")
	assert.Contains(t, out, "no open alerts")
}

func TestRenderUnvaluedReserve(t *testing.T) {
	r := sampleReport()
	r.Snapshot.Reserve[0].PriceUSD = nil
	r.Snapshot.Reserve[0].ValueUSD = nil
	r.Snapshot.ReserveValueUSD = nil
	r.Snapshot.ReserveRatio = nil

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "reserve not fully valued")
}

func TestRenderAlerts(t *testing.T) {
	r := sampleReport()
	r.Alerts = []*alert.Alert{
		{Severity: alert.SeverityCritical, Message: "reserve ratio 1.200 below minimum 1.500"},
		{Severity: alert.SeverityWarning, Message: "cUSD supply changed +12.00%"},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "2 open alert(s)")
	assert.Contains(t, out, "[critical]")
	assert.Contains(t, out, "[warning]")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", formatAmount(0))
	assert.Equal(t, "1,234.50", formatAmount(1234.5))
	assert.Equal(t, "999.99", formatAmount(999.99))
	assert.Equal(t, "1,000,000.00", formatAmount(1e6))
	assert.Equal(t, "-12,345.68", formatAmount(-12345.678))
}
