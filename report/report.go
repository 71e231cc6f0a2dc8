// Package report renders terminal summaries of the monitored Mento
// system: per-token supplies, reserve holdings, collateralization and
// open alerts.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

// Report holds everything one render needs.
type Report struct {
	Snapshot *snapshot.Snapshot
	Deltas   []snapshot.SupplyDelta
	Alerts   []*alert.Alert
}

// Render writes the full report to w.
func Render(w io.Writer, r *Report) error {
	snap := r.Snapshot

	pterm.DefaultSection.WithWriter(w).Printf("%s Mento stablecoin monitor", sym.Snapshot)
	pterm.Fprintln(w, pterm.Gray(fmt.Sprintf("block %d · %s · collected in %s",
		snap.BlockNumber,
		snap.TakenAt.Format(time.RFC3339),
		snap.Duration.Round(time.Millisecond))))
	pterm.Fprintln(w)

	if err := renderTokens(w, r); err != nil {
		return err
	}
	if err := renderReserve(w, snap); err != nil {
		return err
	}
	renderHealth(w, snap)
	renderAlerts(w, r.Alerts)
	return nil
}

func renderTokens(w io.Writer, r *Report) error {
	deltas := map[string]snapshot.SupplyDelta{}
	for _, d := range r.Deltas {
		deltas[d.Symbol] = d
	}

	rows := pterm.TableData{{"Token", "Supply", "Peg (USD)", "Value (USD)", "24h"}}
	for _, t := range r.Snapshot.Tokens {
		change := "-"
		if d, ok := deltas[t.Symbol]; ok {
			change = fmt.Sprintf("%+.2f%%", d.Percent)
			if d.Percent > 0 {
				change = pterm.Green(change)
			} else if d.Percent < 0 {
				change = pterm.Red(change)
			}
		}
		rows = append(rows, []string{
			pterm.Bold.Sprint(t.Symbol),
			formatAmount(t.Supply),
			fmt.Sprintf("%.4f", t.PegUSD),
			formatAmount(t.SupplyUSD),
			change,
		})
	}

	pterm.Fprintln(w, pterm.Bold.Sprint("Stablecoin supply"))
	return pterm.DefaultTable.WithWriter(w).WithHasHeader().WithData(rows).Render()
}

func renderReserve(w io.Writer, snap *snapshot.Snapshot) error {
	rows := pterm.TableData{{"Asset", "Balance", "Price (USD)", "Value (USD)"}}
	for _, h := range snap.Reserve {
		price, value := "n/a", "n/a"
		if h.PriceUSD != nil {
			price = fmt.Sprintf("%.4f", *h.PriceUSD)
		}
		if h.ValueUSD != nil {
			value = formatAmount(*h.ValueUSD)
		}
		rows = append(rows, []string{pterm.Bold.Sprint(h.Symbol), formatAmount(h.Amount), price, value})
	}

	pterm.Fprintln(w)
	pterm.Fprintln(w, pterm.Bold.Sprint(sym.Reserve+" Reserve holdings"))
	return pterm.DefaultTable.WithWriter(w).WithHasHeader().WithData(rows).Render()
}

func renderHealth(w io.Writer, snap *snapshot.Snapshot) {
	pterm.Fprintln(w)
	if snap.TotalSupplyUSD != nil {
		pterm.Fprintln(w, fmt.Sprintf("Total stablecoin value: $%s", formatAmount(*snap.TotalSupplyUSD)))
	}
	if snap.ReserveValueUSD != nil {
		pterm.Fprintln(w, fmt.Sprintf("Total reserve value:    $%s", formatAmount(*snap.ReserveValueUSD)))
	}

	switch {
	case snap.ReserveRatio == nil:
		pterm.Fprintln(w, pterm.Yellow("Reserve ratio:          n/a (reserve not fully valued)"))
	case *snap.ReserveRatio >= 2.0:
		pterm.Fprintln(w, pterm.Green(fmt.Sprintf("Reserve ratio:          %.3fx (healthy)", *snap.ReserveRatio)))
	case *snap.ReserveRatio >= 1.0:
		pterm.Fprintln(w, pterm.Yellow(fmt.Sprintf("Reserve ratio:          %.3fx (adequate)", *snap.ReserveRatio)))
	default:
		pterm.Fprintln(w, pterm.Red(fmt.Sprintf("Reserve ratio:          %.3fx (undercollateralized)", *snap.ReserveRatio)))
	}
}

func renderAlerts(w io.Writer, alerts []*alert.Alert) {
	pterm.Fprintln(w)
	if len(alerts) == 0 {
		pterm.Fprintln(w, pterm.Green(sym.Alert+" no open alerts"))
		return
	}
	pterm.Fprintln(w, pterm.Red(fmt.Sprintf("%s %d open alert(s)", sym.Alert, len(alerts))))
	for _, a := range alerts {
		line := fmt.Sprintf("  [%s] %s", a.Severity, a.Message)
		if a.Severity == alert.SeverityCritical {
			pterm.Fprintln(w, pterm.Red(line))
		} else {
			pterm.Fprintln(w, pterm.Yellow(line))
		}
	}
}

// formatAmount renders a quantity with thousands separators and two
// decimals, matching the dashboard's number formatting.
func formatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
