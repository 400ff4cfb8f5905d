package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ribosim/internal/bridge"
	"ribosim/internal/workflow"
)

// newSessionCommands returns the commands that drive a running daemon.
func newSessionCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newSendCommand(ctx, "track <sequence>", "Report the strand the tracker currently sees", cobra.ExactArgs(1),
			func(args []string) bridge.Inbound {
				return bridge.Inbound{Type: bridge.TypeTracking, Sequence: args[0]}
			}),
		newSendCommand(ctx, "commit", "Commit the tracked strand for validation", cobra.NoArgs,
			func([]string) bridge.Inbound { return bridge.Inbound{Type: bridge.TypeCommit} }),
		newSendCommand(ctx, "reset [protein]", "Abandon the session, optionally switching protein", cobra.MaximumNArgs(1),
			func(args []string) bridge.Inbound {
				msg := bridge.Inbound{Type: bridge.TypeReset}
				if len(args) == 1 {
					msg.Protein = args[0]
				}
				return msg
			}),
		newSendCommand(ctx, "transit-done", "Report that the strand reached the ribosome", cobra.NoArgs,
			func([]string) bridge.Inbound { return bridge.Inbound{Type: bridge.TypeTransitFinished} }),
		newSendCommand(ctx, "select <amino>...", "Submit amino acid picks in codon order, e.g. Met Gly or Met-Gly", cobra.MinimumNArgs(1),
			func(args []string) bridge.Inbound {
				return bridge.Inbound{Type: bridge.TypeSelectAminoAcids, AminoAcids: splitPicks(args)}
			}),
		newAckCommand(ctx),
		newRawSendCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.bridgeClient()
			if err != nil {
				return err
			}
			addr, _ := ctx.bridgeAddr()
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapBridgeError(err, addr)
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			renderSessionStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func renderSessionStatus(cmd *cobra.Command, status *bridge.StatusResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	snap := status.Snapshot

	for _, line := range renderSectionHeader("Session", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, snap.SessionID, colorize))
	fmt.Fprintln(out, renderStatusLine("Protein", statusInfo, snap.Protein, colorize))
	phaseKind := statusInfo
	switch {
	case snap.Phase == workflow.PhaseComplete:
		phaseKind = statusOK
	case snap.Degraded:
		phaseKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Phase", phaseKind, renderPhaseTrack(snap.Phase, colorize), colorize))
	fmt.Fprintln(out, renderStatusLine("Expected", statusInfo, snap.Expected, colorize))
	tracked := snap.Tracked
	if tracked == "" {
		tracked = "(nothing tracked)"
	}
	fmt.Fprintln(out, renderStatusLine("Tracked", statusInfo, tracked, colorize))
	if v := snap.LastValidation; v != nil {
		kind := statusWarn
		if v.Outcome == workflow.OutcomeMatch {
			kind = statusOK
		}
		fmt.Fprintln(out, renderStatusLine("Last commit", kind, fmt.Sprintf("attempt %d: %s", v.Attempt, v.Outcome), colorize))
	}
	if c := snap.LastAminoCheck; c != nil {
		kind := statusWarn
		if c.Outcome == workflow.OutcomeMatch {
			kind = statusOK
		}
		fmt.Fprintln(out, renderStatusLine("Amino picks", kind, fmt.Sprintf("attempt %d: %s", c.Attempt, c.Outcome), colorize))
	}
	if len(snap.Output) > 0 {
		fmt.Fprintln(out, renderStatusLine("Chain", statusInfo, strings.Join(snap.Output, "-"), colorize))
	}
	if snap.Pending > 0 {
		fmt.Fprintln(out, renderStatusLine("Pending codons", statusInfo, strconv.Itoa(snap.Pending), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Headsets", statusInfo, strconv.Itoa(status.Clients), colorize))

	if len(snap.Units) > 0 {
		rows := make([][]string, 0, len(snap.Units))
		for _, u := range snap.Units {
			rows = append(rows, []string{
				strconv.FormatUint(uint64(u.ID), 10),
				u.Codon,
				string(u.Payload),
				u.StateName,
				strconv.Itoa(u.Slot),
				yesNo(u.Degraded),
			})
		}
		fmt.Fprintln(out, renderTable("Carriers", []string{"Unit", "Codon", "Amino", "State", "Slot", "Forced"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
	}
}

func newSendCommand(ctx *commandContext, use, short string, args cobra.PositionalArgs, build func([]string) bridge.Inbound) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return sendInbound(cmd, ctx, build(argv))
		},
	}
}

// splitPicks accepts picks as separate arguments or joined with dashes.
func splitPicks(args []string) []string {
	var picks []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, "-") {
			if part = strings.TrimSpace(part); part != "" {
				picks = append(picks, part)
			}
		}
	}
	return picks
}

func newAckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <unit> <enter|exit>",
		Short: "Report that a carrier animation finished",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || unit == 0 {
				return fmt.Errorf("invalid unit %q", args[0])
			}
			return sendInbound(cmd, ctx, bridge.Inbound{
				Type:      bridge.TypeAnimationFinished,
				Unit:      unit,
				Animation: args[1],
			})
		},
	}
}

func newRawSendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send <json>",
		Short: "Send a raw bridge message, e.g. '{\"type\":\"commit\"}'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var msg bridge.Inbound
			decoder := json.NewDecoder(strings.NewReader(args[0]))
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&msg); err != nil {
				return fmt.Errorf("parse message: %w", err)
			}
			if strings.TrimSpace(msg.Type) == "" {
				return errors.New("message type is required")
			}
			return sendInbound(cmd, ctx, msg)
		},
	}
}

func sendInbound(cmd *cobra.Command, ctx *commandContext, msg bridge.Inbound) error {
	client, err := ctx.bridgeClient()
	if err != nil {
		return err
	}
	addr, _ := ctx.bridgeAddr()
	if err := client.Send(cmd.Context(), msg); err != nil {
		return wrapBridgeError(err, addr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s\n", msg.Type)
	return nil
}
