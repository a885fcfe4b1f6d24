package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tetherlabs/tether/internal/client"
	"github.com/tetherlabs/tether/internal/config"
	"github.com/tetherlabs/tether/internal/eventlog"
	"github.com/tetherlabs/tether/internal/protocol"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Session client for a remote coding agent backend",
	Long: `Tether maintains a persistent websocket session to a remote agent
backend. It mirrors the agent's event stream locally, projects a coarse
status, and relays commands: task runs and approval decisions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("tether version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SessionClient abstracts the session client for testability.
type SessionClient interface {
	Connect(ctx context.Context) error
	Close() error
	ConnState() client.ConnState
	Synced() <-chan struct{}
	Fatal() <-chan error
	Status() eventlog.Status
	Events() []protocol.Event
	PendingApprovals() []eventlog.Approval
	SendAwait(ctx context.Context, action string, data map[string]any, timeout time.Duration) (json.RawMessage, error)
	Approve(ctx context.Context, taskID string, timeout time.Duration) error
	Deny(ctx context.Context, taskID string, timeout time.Duration) error
}

// newSessionClient builds a client from the working-directory config.
// It can be overridden in tests.
var newSessionClient = func() (SessionClient, *config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, nil, err
	}
	c := client.New(cfg.Server.URL, cfg.Token(),
		client.WithBackoff(cfg.Backoff.Base(), cfg.Backoff.Cap()),
		client.WithEventCapacity(cfg.Events.Capacity),
	)
	return c, cfg, nil
}

// connectAndSync dials the backend and waits for the first
// post-connect resynchronization so reads see a settled view.
func connectAndSync(ctx context.Context, c SessionClient, timeout time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Connect(dialCtx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	select {
	case <-c.Synced():
		return nil
	case err := <-c.Fatal():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printField(label, value string) {
	fmt.Printf("  %-12s %s\n", label+":", value)
}

func formatEventTime(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Format("15:04:05")
}

func printEvent(ev protocol.Event) {
	line := fmt.Sprintf("%s  %-16s %s", formatEventTime(ev.Timestamp), ev.Type, ev.Summary)
	if ev.TaskID != "" {
		line += fmt.Sprintf("  [%s]", ev.TaskID)
	}
	fmt.Println(line)
}
