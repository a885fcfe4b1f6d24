package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>...",
	Short: "Ask the agent to run a task",
	Long: `Sends a task prompt to the agent backend and waits for the
acknowledgement. Progress is observable with "tether watch".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	c, cfg, err := newSessionClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := connectAndSync(cmd.Context(), c, cfg.Command.Timeout()); err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	data, err := c.SendAwait(cmd.Context(), "run_task",
		map[string]any{"prompt": prompt}, cfg.Command.Timeout())
	if err != nil {
		return fmt.Errorf("task submission failed: %w", err)
	}

	var ack struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(data, &ack); err == nil && ack.TaskID != "" {
		fmt.Printf("Task started: %s\n", ack.TaskID)
	} else {
		fmt.Println("Task submitted.")
	}
	return nil
}
