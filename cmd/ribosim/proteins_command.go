package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ribosim/internal/bridge"
	"ribosim/internal/catalog"
)

func newProteinsCommand(ctx *commandContext) *cobra.Command {
	var (
		remote  bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "proteins",
		Short: "List the protein catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []bridge.ProteinInfo
			if remote {
				client, err := ctx.bridgeClient()
				if err != nil {
					return err
				}
				addr, _ := ctx.bridgeAddr()
				infos, err = client.Proteins(cmd.Context())
				if err != nil {
					return wrapBridgeError(err, addr)
				}
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				cat, err := catalog.Load(cfg.Catalog.Path)
				if err != nil {
					return err
				}
				infos = bridge.ProteinInfos(cat)
				if cfg.Catalog.DefaultProtein != "" {
					if p, err := cat.Lookup(cfg.Catalog.DefaultProtein); err == nil {
						for i := range infos {
							infos[i].Default = infos[i].Name == p.Name
						}
					}
				}
			}

			if jsonOut {
				return writeJSON(cmd, infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, p := range infos {
				name := p.Name
				if p.Default {
					name += " *"
				}
				rows = append(rows, []string{
					name,
					p.Template,
					p.MRNA,
					strings.Join(p.Chain, "-"),
					strconv.Itoa(len(p.Chain)),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable("Proteins", []string{"Name", "Template", "mRNA", "Chain", "Len"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
			fmt.Fprintln(out, "* default protein")
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the running daemon instead of loading the catalog locally")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}
