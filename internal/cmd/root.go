package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/capctl/internal/app"
	"github.com/Iron-Ham/capctl/internal/config"
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "capctl",
	Short: "Capture parameter controller for logic analyzers and oscilloscopes",
	Long: `capctl selects an instrument, its work mode, sample rate and capture
duration, and drives single, instant and repetitive captures. A built-in
demo instrument is available when no hardware is attached.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// reportError prints err for the user. Refused actions and bad input are
// printed as they are; other failures get an error prefix and, when the
// device was only busy, a hint to retry.
func reportError(w io.Writer, err error) {
	if errors.IsUserFacing(err) {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if errors.IsRetryable(err) {
		fmt.Fprintln(w, "The device may be busy, try again.")
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/capctl/config.yaml)")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g. CAPCTL_SAMPLING_RUN_MODE for sampling.run_mode
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// deviceFlags are the selection overrides shared by the device commands.
type deviceFlags struct {
	device string
	mode   string
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.device, "device", "d", "", "device to use instead of the configured default")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "work mode: logic, analog or dso")
}

// loadConfig reads the validated configuration and applies the overrides.
func (f *deviceFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.device != "" {
		cfg.Device.Default = f.device
	}
	if f.mode != "" {
		if _, ok := device.ParseWorkMode(f.mode); !ok {
			return nil, errors.NewValidationError("unknown work mode").
				WithField("mode").
				WithValue(f.mode)
		}
		cfg.Device.WorkMode = f.mode
	}
	return cfg, nil
}

// openApp builds an App from the configuration and opens its device.
// Callers must Close it.
func (f *deviceFlags) openApp(opts ...app.Option) (*app.App, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Open(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}
