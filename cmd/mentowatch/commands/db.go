package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/lamassu-labs/mentowatch/sym"
)

var pruneDays int

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Database maintenance",
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		stats, err := database.CollectStats()
		if err != nil {
			return err
		}

		rows := pterm.TableData{
			{"Path", stats.Path},
			{"Size", fmt.Sprintf("%.1f MB", float64(stats.SizeBytes)/1024/1024)},
			{"Snapshots", fmt.Sprintf("%d", stats.Snapshots)},
			{"Token rows", fmt.Sprintf("%d", stats.TokenSnapshots)},
			{"Reserve rows", fmt.Sprintf("%d", stats.ReserveSnapshots)},
			{"Alerts", fmt.Sprintf("%d (%d open)", stats.Alerts, stats.OpenAlerts)},
			{"Pulse runs", fmt.Sprintf("%d", stats.PulseRuns)},
		}
		if stats.OldestSnapshot != nil && stats.NewestSnapshot != nil {
			rows = append(rows, []string{"Range", fmt.Sprintf("%s .. %s",
				stats.OldestSnapshot.Local().Format("2006-01-02 15:04"),
				stats.NewestSnapshot.Local().Format("2006-01-02 15:04"))})
		}
		return pterm.DefaultTable.WithData(rows).Render()
	},
}

var dbPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		days := pruneDays
		if days <= 0 {
			days = cfg.Pulse.RetentionDays
		}
		if days <= 0 {
			pterm.Println(pterm.Yellow("retention disabled; pass --days to prune anyway"))
			return nil
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := database.Prune(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			return err
		}
		pterm.Println(pterm.Green(fmt.Sprintf("pruned %d snapshot(s) older than %d days", n, days)))
		return nil
	},
}

func init() {
	dbPruneCmd.Flags().IntVar(&pruneDays, "days", 0, "override the configured retention window")
	dbCmd.AddCommand(dbStatsCmd, dbPruneCmd)
}
