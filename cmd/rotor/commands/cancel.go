package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCancelCommand creates the cancel command.
func NewCancelCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <secret-id>",
		Short: "Cancel a secret's rotation schedule",
		Long: `Cancel the active rotation schedule for a secret. Cancelling a secret
that has no schedule is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Scheduler.CancelRotation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Cancelled rotation schedule for %s\n", args[0])
			return nil
		},
	}
	return cmd
}
