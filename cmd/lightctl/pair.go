package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hue-toys/internal/bridge"
	"hue-toys/internal/discovery"
)

const deviceType = "hue-toys#lightctl"

func newPairCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Register with a bridge and save the credentials",
		Long: `Register with a bridge and save the address and username to the
configuration file. Press the link button on the bridge when asked.
Without --bridge the first bridge found on the network is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			host := cfg.Bridge.Address
			if host == "" {
				found := discovery.NewFinder(3 * time.Second).Find(ctx)
				if len(found) == 0 {
					return errors.New("no bridges found, pass --bridge")
				}
				host = found[0].Host
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Press the link button on the bridge at %s...\n", host)
			user, err := createUser(ctx, host)
			if err != nil {
				return err
			}

			cfg.Bridge.Address = host
			cfg.Bridge.Username = user
			if err := cfg.Save(opts.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paired, configuration saved to %s\n", opts.configPath)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "how long to wait for the link button")
	return cmd
}

// createUser retries until the link button is pressed or ctx ends.
func createUser(ctx context.Context, host string) (string, error) {
	for {
		user, err := bridge.CreateUser(ctx, host, deviceType)
		if err == nil {
			return user, nil
		}
		var apiErr *bridge.APIError
		if !errors.As(err, &apiErr) || apiErr.Type != bridge.ErrorTypeLinkButton {
			return "", err
		}
		log.Debug("[lightctl] Link button not pressed yet")
		if err := sleepContext(ctx, 2*time.Second); err != nil {
			return "", fmt.Errorf("link button was not pressed: %w", err)
		}
	}
}
