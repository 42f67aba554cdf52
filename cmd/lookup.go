package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"efd/chains"
	"efd/contracts"
	"efd/directory"
	"efd/logging"
)

func lookupCmd() *cobra.Command {
	var (
		output  string
		with    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "lookup <address|name>",
		Short: "Resolve one profile and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			closeLog, err := setupLogging(nil)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			resolver, err := eng.resolver(ctx)
			if err != nil {
				return err
			}

			profile, err := resolver.Resolve(ctx, args[0])
			if errors.Is(err, directory.ErrNotFound) {
				return fmt.Errorf("no profile found for %q", args[0])
			}
			if err != nil {
				return err
			}

			var viewer *directory.Profile
			if with != "" {
				if viewer, err = resolver.Resolve(ctx, with); err != nil {
					return fmt.Errorf("resolve %q: %w", with, err)
				}
			}

			if output == "" {
				output = "json"
				if term.IsTerminal(int(os.Stdout.Fd())) {
					output = "text"
				}
			}
			return printProfile(cmd.OutOrStdout(), output, newProfileView(profile, viewer))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "text, json or yaml (default text on a terminal, json otherwise)")
	cmd.Flags().StringVar(&with, "with", "", "mark friends shared with this address or name")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long, 0 waits forever")
	return cmd
}

// resolver connects to the wallet or the fallback node and binds the
// directory for whatever chain it is on.
func (e *engine) resolver(ctx context.Context) (*directory.Resolver, error) {
	log := logging.WithComponent("lookup")
	if !e.wallet.Detect(ctx) {
		log.Debug().Msg("no wallet, using read-only node")
	}

	chainID, err := e.wallet.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	endpoints, err := contracts.Load(e.registry, chainID, e.wallet.Caller())
	if err != nil {
		return nil, err
	}
	log.Debug().Uint64("chain_id", chainID).Str("network", chains.Name(chainID)).Msg("directory bound")
	return directory.NewResolver(endpoints, e.normalizer), nil
}

func printProfile(w io.Writer, output string, p *profileView) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		label := p.Address
		if p.Name != "" {
			label = p.Name + "  " + p.Address
		}
		fmt.Fprintln(w, label)
		fmt.Fprintf(w, "friends: %d\n", len(p.Friends))
		for i, f := range p.Friends {
			marker := " "
			if f.Mutual {
				marker = "*"
			}
			if f.Name != "" {
				fmt.Fprintf(w, "%s %3d. %s  %s\n", marker, i+1, f.Name, f.Address)
			} else {
				fmt.Fprintf(w, "%s %3d. %s\n", marker, i+1, f.Address)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
