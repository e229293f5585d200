package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/rotor/pkg/rotation"
)

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(opts *Options) *cobra.Command {
	var (
		mode         string
		intervalDays int
		strategyKey  string
	)

	cmd := &cobra.Command{
		Use:   "schedule <secret-id>",
		Short: "Create or replace the rotation schedule for a secret",
		Long: `Create a rotation schedule for a secret. If the secret already has an
active schedule it is replaced; the old one is cancelled.`,
		Example: `  # Rotate a database password every 30 days
  rotor schedule db-password-1 --interval 30 --strategy database

  # Register a manually rotated secret
  rotor schedule legacy-token --mode manual --strategy regenerate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			policy := rotation.Policy{
				Mode:         rotation.Mode(mode),
				IntervalDays: intervalDays,
				StrategyKey:  strategyKey,
			}
			sched, err := rt.Scheduler.ScheduleRotation(cmd.Context(), args[0], policy)
			if err != nil {
				return err
			}

			if sched.NextRotation.IsZero() {
				fmt.Printf("Scheduled %s (manual rotation only)\n", sched.SecretID)
			} else {
				fmt.Printf("Scheduled %s: next rotation %s\n",
					sched.SecretID, sched.NextRotation.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(rotation.ModeAutomatic), "Rotation mode: automatic or manual")
	cmd.Flags().IntVar(&intervalDays, "interval", 30, "Rotation interval in days (automatic mode)")
	cmd.Flags().StringVar(&strategyKey, "strategy", "regenerate", "Rotation strategy key")
	return cmd
}
