package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusEventCount int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the agent session status",
	Long: `Connects to the backend, synchronizes the local session view, and
prints the projected status, pending approvals, and recent events.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusEventCount, "events", "n", 10,
		"number of recent events to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, cfg, err := newSessionClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := connectAndSync(cmd.Context(), c, cfg.Command.Timeout()); err != nil {
		return err
	}

	fmt.Println("Session")
	fmt.Println("=======")
	printField("Server", cfg.Server.URL)
	printField("Connection", c.ConnState().String())
	printField("Status", string(c.Status()))

	approvals := c.PendingApprovals()
	if len(approvals) > 0 {
		fmt.Println()
		fmt.Println("Pending Approvals")
		fmt.Println("-----------------")
		for _, a := range approvals {
			printField(a.TaskID, a.Summary)
		}
	}

	events := c.Events()
	if len(events) > statusEventCount {
		events = events[:statusEventCount]
	}
	if len(events) > 0 {
		fmt.Println()
		fmt.Println("Recent Events")
		fmt.Println("-------------")
		// The log is newest first; print oldest first.
		for i := len(events) - 1; i >= 0; i-- {
			printEvent(events[i])
		}
	}

	return nil
}
