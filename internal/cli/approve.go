package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <task-id>",
	Short: "Approve a pending agent action",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var denyCmd = &cobra.Command{
	Use:   "deny <task-id>",
	Short: "Deny a pending agent action",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeny,
}

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(denyCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	c, cfg, err := newSessionClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := connectAndSync(cmd.Context(), c, cfg.Command.Timeout()); err != nil {
		return err
	}
	if err := c.Approve(cmd.Context(), args[0], cfg.Command.Timeout()); err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}
	fmt.Printf("Approved %s\n", args[0])
	return nil
}

func runDeny(cmd *cobra.Command, args []string) error {
	c, cfg, err := newSessionClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := connectAndSync(cmd.Context(), c, cfg.Command.Timeout()); err != nil {
		return err
	}
	if err := c.Deny(cmd.Context(), args[0], cfg.Command.Timeout()); err != nil {
		return fmt.Errorf("denial failed: %w", err)
	}
	fmt.Printf("Denied %s\n", args[0])
	return nil
}
