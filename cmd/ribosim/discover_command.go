package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ribosim/internal/bridge"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	var (
		timeout time.Duration
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find lab benches advertised on the local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			peers, err := bridge.Discover(cmd.Context(), cfg.Bridge.ServiceName, timeout)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, peers)
			}
			out := cmd.OutOrStdout()
			if len(peers) == 0 {
				fmt.Fprintf(out, "No %s benches found within %s\n", cfg.Bridge.ServiceName, timeout)
				return nil
			}
			rows := make([][]string, 0, len(peers))
			for _, p := range peers {
				rows = append(rows, []string{p.Instance, p.Address, strconv.Itoa(p.Port), strings.Join(p.Text, " ")})
			}
			fmt.Fprintln(out, renderTable("", []string{"Instance", "Address", "Port", "TXT"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to browse")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}
