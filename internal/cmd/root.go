// Package cmd is the hexe CLI entry shell.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hexe/internal/mux"
	"hexe/internal/ses"
	"hexe/internal/termstyle"
)

var (
	flagNotify  string
	flagList    bool
	flagAttach  string
	flagName    string
	flagDebug   bool
	flagLogfile string
)

var rootCmd = &cobra.Command{
	Use:           "hexe",
	Short:         "A terminal multiplexer with detachable sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagNotify != "" {
			return mux.SendNotify(flagNotify)
		}
		if flagList {
			return runList()
		}
		return mux.Run(mux.Options{
			Name:    flagName,
			Attach:  flagAttach,
			Debug:   flagDebug,
			Logfile: flagLogfile,
		})
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagNotify, "notify", "n", "", "send a notification to the surrounding hexe session")
	rootCmd.Flags().BoolVarP(&flagList, "list", "l", false, "list detached sessions and orphaned panes")
	rootCmd.Flags().StringVarP(&flagAttach, "attach", "a", "", "reattach a detached session by name or UUID prefix")
	rootCmd.Flags().StringVarP(&flagName, "name", "N", "", "session name (random if omitted)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&flagLogfile, "logfile", "L", "", "write logs to a file")

	rootCmd.AddCommand(sesCmd)
}

// runList prints detached sessions and orphaned panes.
func runList() error {
	client, err := ses.Connect(flagDebug, flagLogfile)
	if err != nil {
		return fmt.Errorf("session daemon unavailable: %w", err)
	}
	defer client.Close()

	sessions, err := client.ListSessions()
	if err != nil {
		return err
	}
	orphans, err := client.ListOrphaned()
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println(termstyle.Dim("no detached sessions"))
	} else {
		fmt.Println(termstyle.Bold("detached sessions"))
		for _, s := range sessions {
			fmt.Printf("  %s  %s  %s  %d pane(s)\n",
				termstyle.Cyan(s.Name), termstyle.Dim(s.SessionID[:8]), s.DetachedAt, s.PaneCount)
		}
	}
	if len(orphans) == 0 {
		fmt.Println(termstyle.Dim("no orphaned panes"))
	} else {
		fmt.Println(termstyle.Bold("orphaned panes"))
		for _, o := range orphans {
			line := "  " + termstyle.Cyan(o.UUID[:8])
			if o.Cmd != "" {
				line += "  " + o.Cmd
			}
			if o.Cwd != "" {
				line += "  " + termstyle.Dim(o.Cwd)
			}
			if o.Sticky {
				line += "  " + termstyle.Yellow("sticky")
			}
			fmt.Println(line)
		}
	}
	return nil
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
