package commands

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/pulse"
	"github.com/lamassu-labs/mentowatch/server"
	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

var serveNoPulse bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: sym.Server + " Serve the live dashboard",
	Long: `Start the dashboard server and, unless --no-pulse is given, the
collection daemon alongside it. Connected clients receive every new
snapshot and alert over the websocket feed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		srv := server.New(cfg.Server, cfg.ServerPort(),
			snapshot.NewStore(database),
			alert.NewStore(database),
			pulse.NewRunStore(database))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx) })

		var (
			engine *alert.Engine
			daemon *pulse.Pulse
		)
		if !serveNoPulse {
			p, eng, cleanup, err := buildPulseWithDB(cmd, database, srv)
			if err != nil {
				return err
			}
			defer cleanup()
			engine = eng
			daemon = p
			g.Go(func() error {
				if err := p.Run(gctx); err != nil && gctx.Err() == nil {
					return err
				}
				return nil
			})
		}

		watcher, err := am.NewWatcher(func(newCfg *am.Config) {
			cfg = newCfg
			if engine != nil {
				engine.SetConfig(newCfg.Alerts)
			}
			if daemon != nil {
				daemon.SetConfig(newCfg.Pulse)
			}
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})

		if err := g.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// buildPulseWithDB wires the collection stack on an already-open
// database so the server and pulse share one connection.
func buildPulseWithDB(cmd *cobra.Command, database *db.DB, broadcast pulse.Broadcaster) (*pulse.Pulse, *alert.Engine, func(), error) {
	client, err := dialChain(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}

	collector := newCollector(client)
	engine := alert.NewEngine(cfg.Alerts, alert.NewStore(database), notifierFor(broadcast))
	p := pulse.New(cfg.Pulse, collector, snapshot.NewStore(database),
		pulse.NewRunStore(database), engine, database, broadcast, cfg.Alerts.SupplyWindow())

	return p, engine, client.Close, nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoPulse, "no-pulse", false,
		"serve stored data only, without collecting new snapshots")
}
