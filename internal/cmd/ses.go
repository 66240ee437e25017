package cmd

import (
	"github.com/spf13/cobra"

	"hexe/internal/ses"
)

// sesCmd hosts the session daemon subcommands. The mux spawns
// `hexe ses daemon` itself; users rarely run it directly.
var sesCmd = &cobra.Command{
	Use:    "ses",
	Short:  "session daemon commands",
	Hidden: true,
}

var sesDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "run the session daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ses.RunDaemon(flagDebug, flagLogfile)
	},
}

func init() {
	sesCmd.AddCommand(sesDaemonCmd)
}
