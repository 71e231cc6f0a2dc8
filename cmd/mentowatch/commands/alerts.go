package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/sym"
)

var (
	alertsOpen  bool
	alertsLimit int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: sym.Alert + " List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		store := alert.NewStore(database)

		var alerts []*alert.Alert
		if alertsOpen {
			alerts, err = store.OpenAlerts()
		} else {
			alerts, err = store.Recent(alertsLimit)
		}
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			pterm.Println(pterm.Green("no alerts"))
			return nil
		}

		rows := pterm.TableData{{"Fired", "Rule", "Subject", "Severity", "State", "Message"}}
		for _, a := range alerts {
			state := pterm.Red("open")
			if a.ResolvedAt != nil {
				state = pterm.Gray(fmt.Sprintf("resolved %s", a.ResolvedAt.Local().Format("01-02 15:04")))
			}
			sev := pterm.Yellow(a.Severity)
			if a.Severity == alert.SeverityCritical {
				sev = pterm.Red(a.Severity)
			}
			rows = append(rows, []string{
				a.FiredAt.Local().Format("2006-01-02 15:04:05"),
				a.Rule,
				a.Subject,
				sev,
				state,
				a.Message,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsOpen, "open", false, "show only firing alerts")
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 50, "maximum rows")
}
