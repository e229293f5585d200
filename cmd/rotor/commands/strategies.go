package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var strategyDescriptions = map[string]string{
	"regenerate":  "Generate a fresh random value (default)",
	"database":    "Rotate a PostgreSQL role password",
	"api-key":     "Mint a new key via the provisioning service, revoke the old one",
	"certificate": "Reissue a TLS certificate and key pair",
}

// NewStrategiesCommand creates the strategies command.
func NewStrategiesCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List available rotation strategies",
		Long: `List the rotation strategies registered under the current
configuration. Only registered strategies can be referenced by a
schedule's policy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "STRATEGY\tDESCRIPTION")
			for _, key := range rt.Registry.Keys() {
				desc := strategyDescriptions[key]
				if desc == "" {
					desc = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", key, desc)
			}
			return nil
		},
	}
	return cmd
}
