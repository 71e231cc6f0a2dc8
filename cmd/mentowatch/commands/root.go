package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/chain"
	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/logger"
)

var (
	verbosity  int
	jsonOutput bool

	cfg *am.Config
)

var rootCmd = &cobra.Command{
	Use:   "mentowatch",
	Short: "Monitor Mento stablecoin supply and reserve health on Celo",
	Long: `mentowatch reads Mento stablecoin supplies and reserve holdings
from the Celo blockchain, records them to a local database, evaluates
collateralization alerts, and serves a live dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			if err := logger.Initialize(true); err != nil {
				return err
			}
		} else {
			if err := logger.InitializeAtLevel(logger.VerbosityToLevel(verbosity)); err != nil {
				return err
			}
		}

		var err error
		cfg, _, err = am.Load()
		return err
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json-logs", false,
		"emit structured JSON logs")

	rootCmd.AddCommand(
		reportCmd,
		pulseCmd,
		serveCmd,
		snapshotsCmd,
		alertsCmd,
		amCmd,
		dbCmd,
		versionCmd,
	)
}

// openDatabase opens the configured database.
func openDatabase() (*db.DB, error) {
	return db.Open(cfg.Database.Path)
}

// dialChain connects to the configured RPC endpoint.
func dialChain(ctx context.Context) (*chain.Client, error) {
	return chain.Dial(ctx, cfg.Chain)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
