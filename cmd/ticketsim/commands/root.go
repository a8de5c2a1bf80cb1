package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ticketsim/internal/config"
	"ticketsim/internal/logging"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	appCfg  *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "ticketsim",
	Short: "ticketsim generates synthetic security-operations ticket datasets",
	Long: `A seeded simulator of a tiered incident-response team: tickets arrive with seasonal
patterns, analysts on shifts pick them up, learn, refuse, escalate and requeue.
The run produces a train dataset of handled tickets and a test dataset of new arrivals.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logging.Init(verbose); err != nil {
			log.Warn().Err(err).Msg("File logging disabled")
		}

		var err error
		appCfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("ticketsim starting")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(generateCmd, versionCmd)
}
