package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/report"
	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

var reportLive bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: sym.Report + " Print a supply and reserve report",
	Long: `Render a terminal report of stablecoin supplies, reserve holdings
and collateralization. By default the latest stored snapshot is used;
--live collects a fresh one from chain without storing it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		snapStore := snapshot.NewStore(database)
		alertStore := alert.NewStore(database)

		var snap *snapshot.Snapshot
		if reportLive {
			client, err := dialChain(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			snap, err = newCollector(client).Collect(ctx)
			if err != nil {
				return err
			}
		} else {
			snap, err = snapStore.Latest()
			if errors.Is(err, errors.ErrNoSnapshot) {
				return errors.WithHint(err,
					"no snapshots stored yet; run `mentowatch pulse start` or use --live")
			}
			if err != nil {
				return err
			}
		}

		deltas, err := snapStore.Deltas(cfg.Alerts.SupplyWindow())
		if err != nil {
			return err
		}
		open, err := alertStore.OpenAlerts()
		if err != nil {
			return err
		}

		return report.Render(os.Stdout, &report.Report{
			Snapshot: snap,
			Deltas:   deltas,
			Alerts:   open,
		})
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportLive, "live", false,
		"collect a fresh snapshot from chain instead of reading the database")
}
