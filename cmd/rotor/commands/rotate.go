package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRotateCommand creates the rotate command.
func NewRotateCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate <secret-id>",
		Short: "Run one rotation for a secret now",
		Long: `Execute the secret's rotation strategy immediately, outside its normal
schedule. The usual state machine applies: a rotation already in
progress elsewhere is skipped, failures count against the retry budget.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Scheduler.ExecuteRotation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Rotation executed for %s\n", args[0])
			return nil
		},
	}
	return cmd
}
