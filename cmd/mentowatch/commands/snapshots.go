package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

var (
	snapshotsHours int
	snapshotsLimit int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: sym.Snapshot + " List stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		store := snapshot.NewStore(database)
		snaps, err := store.History(time.Now().Add(-time.Duration(snapshotsHours)*time.Hour), snapshotsLimit)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			pterm.Println("no snapshots in the selected window")
			return nil
		}

		rows := pterm.TableData{{"ID", "Taken", "Block", "Supply (USD)", "Reserve (USD)", "Ratio"}}
		for _, s := range snaps {
			ratio := "n/a"
			if s.ReserveRatio != nil {
				ratio = fmt.Sprintf("%.3f", *s.ReserveRatio)
			}
			rows = append(rows, []string{
				abbreviate(s.ID),
				s.TakenAt.Local().Format("2006-01-02 15:04:05"),
				fmt.Sprintf("%d", s.BlockNumber),
				formatUSD(s.TotalSupplyUSD),
				formatUSD(s.ReserveValueUSD),
				ratio,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func formatUSD(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f", *v)
}

func init() {
	snapshotsCmd.Flags().IntVar(&snapshotsHours, "hours", 24, "window length in hours")
	snapshotsCmd.Flags().IntVar(&snapshotsLimit, "limit", 50, "maximum rows")
}
