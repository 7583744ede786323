// Package cmd holds the auxiliary CLI subcommands.
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/videobridge/capturehal/internal/config"
	"github.com/videobridge/capturehal/internal/hal"
	"github.com/videobridge/capturehal/internal/hal/sim"
	"github.com/videobridge/capturehal/internal/logging"
)

// CreateProbeCmd creates the probe command. It loads the device table,
// brings the driver up without a session, and prints every device with its
// current stream configurations.
func CreateProbeCmd() *cobra.Command {
	var tableFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Enumerate capture devices and stream configurations",
		Long: `Loads the device table, instantiates the capture driver, and prints ` +
			`each device with its stream configurations. Useful for verifying a ` +
			`device table before starting the server.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{
				Level:  "warn",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			manager := config.NewDeviceManager(tableFile)
			if err := manager.Load(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to load device table %s: %v\n", tableFile, err)
				os.Exit(1)
			}

			profiles := manager.Devices()
			if len(profiles) == 0 {
				fmt.Println("device table is empty")
				return
			}

			driver := sim.NewDriver(profiles)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tNAME\tTYPE\tCABLE\tSTREAM\tDELIVERY\tMAX")

			for _, profile := range profiles {
				configs, err := driver.StreamConfigs(profile.ID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "device %d: %v\n", profile.ID, err)
					continue
				}
				cable := hal.CableStatusDisconnected
				if profile.Connected {
					cable = hal.CableStatusConnected
				}
				if len(configs) == 0 {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t-\t-\t-\n",
						profile.ID, profile.Name, profile.Type, cable)
					continue
				}
				for _, cfg := range configs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%dx%d\n",
						profile.ID, profile.Name, profile.Type, cable,
						cfg.StreamID, cfg.Type, cfg.MaxWidth, cfg.MaxHeight)
				}
			}
			w.Flush()
		},
	}

	cmd.Flags().StringVarP(&tableFile, "devices", "d", "devices.toml", "Device table file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")
	return cmd
}
