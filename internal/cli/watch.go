package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tetherlabs/tether/internal/protocol"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream agent events until interrupted",
	Long: `Connects to the backend and prints events as they arrive, oldest
first, until interrupted. The connection is maintained across drops;
events missed while disconnected appear after resynchronization.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 250*time.Millisecond,
		"poll interval for new events")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, cfg, err := newSessionClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := connectAndSync(ctx, c, cfg.Command.Timeout()); err != nil {
		return err
	}
	return watchEvents(ctx, c, watchInterval)
}

// watchEvents polls the local event log and prints entries it has not
// shown yet. Identity-based tracking keeps replayed events from
// printing twice after a reconnect.
func watchEvents(ctx context.Context, c SessionClient, interval time.Duration) error {
	seen := make(map[string]struct{})
	lastStatus := c.Status()
	fmt.Printf("status: %s\n", lastStatus)
	printNewEvents(c.Events(), seen)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-c.Fatal():
			return err
		case <-ticker.C:
			printNewEvents(c.Events(), seen)
			if status := c.Status(); status != lastStatus {
				lastStatus = status
				fmt.Printf("status: %s\n", status)
			}
		}
	}
}

func printNewEvents(events []protocol.Event, seen map[string]struct{}) {
	// The log is newest first; walk backwards for arrival order.
	for i := len(events) - 1; i >= 0; i-- {
		id := events[i].Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		printEvent(events[i])
	}
}
