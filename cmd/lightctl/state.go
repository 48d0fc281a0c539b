package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hue-toys/internal/server"
)

func newStateCommand(opts *options) *cobra.Command {
	var lights []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the current state of lights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := opts.gateway()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ids, err := gw.Lookup(ctx, lights...)
			if err != nil {
				return err
			}

			infos := make([]server.LightInfo, 0, len(ids))
			for _, id := range ids {
				st, err := gw.State(ctx, id)
				if err != nil {
					return err
				}
				if !asJSON {
					reach := ""
					if !st.Reachable {
						reach = " (unreachable)"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%3d %-20s mode=%-3s %s%s\n", id, st.Name, st.ColorMode, st.Params, reach)
					continue
				}
				infos = append(infos, server.NewLightInfo(id, st))
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&lights, "light", "l", nil, "light ID or name, may be repeated")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
