package cli

import (
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Nodeflow/internal/config"
)

// NewRootCmd создаёт корневую команду nodeflow со всеми подкомандами.
func NewRootCmd(version string) *cobra.Command {
	var serverURL string
	var configPath string
	var jsonOutput bool
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:           "nodeflow",
		Short:         "Nodeflow CLI — dataflow workflow engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API server URL (default from config, http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "HTTP timeout for server requests (0 = none)")

	var (
		cfgOnce sync.Once
		cfg     *config.Config
		cfgErr  error
	)
	configFn := func() (*config.Config, error) {
		cfgOnce.Do(func() {
			cfg, cfgErr = config.Load(configPath)
		})
		return cfg, cfgErr
	}

	d := Deps{
		Config: configFn,
		Output: func() *Output { return NewOutput(jsonOutput) },
		Client: func() *Client {
			url := serverURL
			if url == "" {
				if c, err := configFn(); err == nil {
					url = c.ServerURL
				}
			}
			if url == "" {
				url = config.Default().ServerURL
			}
			return NewClient(url, timeout)
		},
	}

	rootCmd.AddCommand(
		NewRunCmd(d),
		NewValidateCmd(d),
		NewScheduleCmd(d),
		NewEventsCmd(d),
	)
	rootCmd.AddCommand(NewControlCmds(d)...)

	return rootCmd
}
