package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, models: %d\n", len(cfg.Providers), len(cfg.Models))
			fmt.Fprintf(out, "Transport: %s, metrics: %v\n", cfg.Server.Transport, cfg.Server.MetricsEnabled)
			fmt.Fprintf(out, "Tools: documents=%v suggestions=%v weather=%v\n",
				cfg.Tools.EnableDocuments, cfg.Tools.EnableSuggestions, cfg.Tools.EnableWeather)
			return nil
		},
	}
}
