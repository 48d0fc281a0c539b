package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hue-toys/internal/core"
)

// transitionOverhead roughly covers command latency when waiting for a
// transition to finish, in deciseconds.
const transitionOverhead = 4

func newSetCommand(opts *options) *cobra.Command {
	req := &request{}
	var on, off, toggle, wait bool
	var lights []string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change light parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case on:
				req.power = powerOn
			case off:
				req.power = powerOff
			case toggle:
				req.power = powerToggle
			}
			req.hasTrans = cmd.Flags().Changed("transition-time")

			gw, _, err := opts.gateway()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			ids, err := gw.Lookup(ctx, lights...)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return fmt.Errorf("no lights available")
			}

			for _, light := range ids {
				var cur core.LightState
				if req.needsState() {
					if cur, err = gw.State(ctx, light); err != nil {
						return err
					}
				}
				params, err := req.resolve(cur)
				if err != nil {
					return err
				}
				log.WithField("light", light).Debugf("[lightctl] Sending %s", params)
				if _, err := gw.Send(ctx, []int{light}, params); err != nil {
					return err
				}
			}

			if wait {
				t := core.DefaultTransitionTime
				if req.hasTrans {
					t = req.transition
				}
				return sleepContext(ctx, time.Duration(t+transitionOverhead)*100*time.Millisecond)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&on, "on", "n", false, "turn lights on")
	f.BoolVarP(&off, "off", "f", false, "turn lights off")
	f.BoolVarP(&toggle, "toggle", "o", false, "toggle lights on or off")
	cmd.MarkFlagsMutuallyExclusive("on", "off", "toggle")
	f.VarP(&req.bri, "brightness", "b", "set brightness (1 to 254)")
	f.VarP(&req.hue, "hue", "u", "set hue (0 to 65535)")
	f.VarP(&req.sat, "saturation", "s", "set saturation (0 to 254)")
	f.Float64SliceVarP(&req.xy, "xy", "x", nil, "set X,Y color coordinates (0 to 1)")
	f.VarP(&req.ct, "ct", "c", "set color temperature in mireds")
	f.VarP(&req.ctk, "kelvin", "k", "set color temperature in Kelvin")
	f.VarP(&req.inc, "incandescent", "i",
		"set brightness and a color simulating an incandescent bulb dimmed to that level")
	f.IntVarP(&req.transition, "transition-time", "t", 0, "transition time in tenths of a second")
	f.BoolVarP(&wait, "wait", "w", false, "wait for the transition to finish before exiting")
	f.StringSliceVarP(&lights, "light", "l", nil, "light ID or name, may be repeated")
	return cmd
}
