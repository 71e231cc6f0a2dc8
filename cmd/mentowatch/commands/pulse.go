package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/chain"
	"github.com/lamassu-labs/mentowatch/prices"
	"github.com/lamassu-labs/mentowatch/pulse"
	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Pulse + " Run the collection daemon",
}

var pulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: sym.PulseOpen + " Start collecting snapshots on the configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, engine, cleanup, err := buildPulse(cmd, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		watcher, err := am.NewWatcher(func(newCfg *am.Config) {
			cfg = newCfg
			engine.SetConfig(newCfg.Alerts)
			p.SetConfig(newCfg.Pulse)
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
		g.Go(func() error { return p.Run(gctx) })

		if err := g.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

var pulseOnceCmd = &cobra.Command{
	Use:   "once",
	Short: sym.Snapshot + " Collect and store a single snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, cleanup, err := buildPulse(cmd, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		return p.Cycle(cmd.Context())
	},
}

var pulseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent collection runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := pulse.NewRunStore(database).Recent(10)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			pterm.Println("no runs recorded")
			return nil
		}

		rows := pterm.TableData{{"Started", "Outcome", "Snapshot", "Error"}}
		for _, r := range runs {
			outcome := pterm.Red("failed")
			if r.OK {
				outcome = pterm.Green("ok")
			} else if r.FinishedAt == nil {
				outcome = pterm.Yellow("running")
			}
			rows = append(rows, []string{
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				outcome,
				abbreviate(r.SnapshotID),
				r.Error,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

// buildPulse wires the full collection stack. broadcast may be nil.
func buildPulse(cmd *cobra.Command, broadcast pulse.Broadcaster) (*pulse.Pulse, *alert.Engine, func(), error) {
	ctx := cmd.Context()

	database, err := openDatabase()
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := dialChain(ctx)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	collector := newCollector(client)
	snapStore := snapshot.NewStore(database)
	runStore := pulse.NewRunStore(database)
	engine := alert.NewEngine(cfg.Alerts, alert.NewStore(database), notifierFor(broadcast))

	p := pulse.New(cfg.Pulse, collector, snapStore, runStore, engine,
		database, broadcast, cfg.Alerts.SupplyWindow())

	cleanup := func() {
		client.Close()
		database.Close()
	}
	return p, engine, cleanup, nil
}

// newCollector assembles the chain reader stack from config.
func newCollector(client *chain.Client) *snapshot.Collector {
	return snapshot.NewCollector(client,
		chain.NewRegistry(cfg.Registry),
		prices.NewFeed(cfg.Prices),
		cfg.Pulse.Workers)
}

// notifierFor forwards alert events to the broadcaster when it also
// implements alert.Notifier (the dashboard server does).
func notifierFor(b pulse.Broadcaster) alert.Notifier {
	if n, ok := b.(alert.Notifier); ok {
		return n
	}
	return nil
}

func abbreviate(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func init() {
	pulseCmd.AddCommand(pulseStartCmd, pulseOnceCmd, pulseStatusCmd)
}
