// Command lightctl controls Hue lights from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hue-toys/internal/bridge"
	"hue-toys/internal/config"
	"hue-toys/internal/logging"
)

var errNoAction = errors.New("no action specified")

type options struct {
	configPath string
	bridge     string
	username   string
	verbose    bool
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "hue-toys", "config.yaml")
}

// load reads the configuration and applies the connection flags.
func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.bridge != "" {
		cfg.Bridge.Address = o.bridge
	}
	if o.username != "" {
		cfg.Bridge.Username = o.username
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) gateway() (*bridge.Gateway, *config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Bridge.Address == "" || cfg.Bridge.Username == "" {
		return nil, nil, fmt.Errorf("%w: no bridge configured, run 'lightctl pair' first", config.ErrInvalid)
	}
	gw, err := bridge.NewGateway(bridge.NewClient(cfg.Bridge.Address, cfg.Bridge.Username), nil, bridge.Options{
		Retries:        cfg.Bridge.Retries,
		NoRetries:      cfg.Bridge.Retries == 0,
		RetryWait:      cfg.Bridge.RetryWait,
		RequestTimeout: cfg.Bridge.RequestTimeout,
	})
	return gw, cfg, err
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	set := newSetCommand(opts)

	root := &cobra.Command{
		Use:   "lightctl",
		Short: "Control Hue lights",
		Long: `Control Hue lights. Without a subcommand lightctl runs "set".

If no lights are specified, all lights found on the bridge are used.

Except with --xy, numerical arguments may be prefixed with + or - to add to
or subtract from the light's current setting. Relative color temperatures
are limited to the native range of 153-500 mireds or 2000-6535 Kelvin;
absolute values outside it are simulated.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          set.RunE,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(), "configuration file")
	root.PersistentFlags().StringVar(&opts.bridge, "bridge", "", "bridge address, overrides the configuration")
	root.PersistentFlags().StringVar(&opts.username, "username", "", "bridge username, overrides the configuration")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")
	root.Flags().AddFlagSet(set.Flags())

	root.AddCommand(set, newStateCommand(opts), newDiscoverCommand(opts), newPairCommand(opts))
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		if errors.Is(err, errNoAction) {
			fmt.Fprintln(os.Stderr, "Run 'lightctl --help' for usage.")
		}
		os.Exit(1)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
