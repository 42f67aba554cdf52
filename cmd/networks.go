package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"efd/chains"
)

func networksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List the networks the directory is deployed on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()
			printNetworks(cmd.OutOrStdout(), eng.registry)
			return nil
		},
	}
}

func printNetworks(w io.Writer, reg chains.Registry) {
	for _, id := range reg.ChainIDs() {
		d, _ := reg.Lookup(id)
		fmt.Fprintf(w, "%s (%d)\n", chains.Name(id), id)
		fmt.Fprintf(w, "  %-24s %s\n", chains.ContractDirectory, d.Directory.Hex())
		fmt.Fprintf(w, "  %-24s %s\n", chains.ContractReverseRecords, d.ReverseRecords.Hex())
		fmt.Fprintf(w, "  %-24s %s\n", chains.ContractENSRegistry, d.ENSRegistry.Hex())
		fmt.Fprintf(w, "  %-24s %s\n", chains.ContractPublicResolver, d.PublicResolver.Hex())
	}
}
