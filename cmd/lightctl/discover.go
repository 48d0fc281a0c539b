package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hue-toys/internal/discovery"
)

func newDiscoverCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find bridges on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.load(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+5*time.Second)
			defer cancel()

			found := discovery.NewFinder(timeout).Find(ctx)
			if len(found) == 0 {
				return fmt.Errorf("no bridges found")
			}
			for _, b := range found {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-18s %s\n", b.Host, b.ID, b.Name)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to browse")
	return cmd
}
