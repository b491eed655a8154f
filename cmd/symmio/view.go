package main

import (
	"fmt"
	"math/big"

	"github.com/banky/go-symmio/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func newViewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Read-only diamond queries",
	}
	cmd.AddCommand(
		newSymbolCmd(a),
		newSymbolsCmd(a),
		newSymbolNamesCmd(a),
		newPendingCmd(a),
		newPositionsCountCmd(a),
		newCooldownsCmd(a),
	)
	return cmd
}

func newSymbolCmd(a *app) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "symbol",
		Short: "Print one symbol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			diamond, err := a.diamond(cmd.Context(), false)
			if err != nil {
				return err
			}
			symbol, err := diamond.GetSymbol(cmd.Context(), big.NewInt(id))
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", symbol)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "symbol-id", 0, "symbol id")
	cmd.MarkFlagRequired("symbol-id")
	return cmd
}

func newSymbolsCmd(a *app) *cobra.Command {
	var start, size int64
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "Print a page of symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			diamond, err := a.diamond(cmd.Context(), false)
			if err != nil {
				return err
			}
			symbols, err := diamond.GetSymbols(cmd.Context(), big.NewInt(start), big.NewInt(size))
			if err != nil {
				return err
			}
			for _, symbol := range symbols {
				printf(cmd, "%s\n", symbol)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&start, "start", 0, "first symbol index")
	cmd.Flags().Int64Var(&size, "size", 20, "page size")
	return cmd
}

func newSymbolNamesCmd(a *app) *cobra.Command {
	var symbolIDs, quoteIDs string
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Resolve symbol names by symbol id or by quote id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (symbolIDs == "") == (quoteIDs == "") {
				return fmt.Errorf("exactly one of --symbol-ids or --quote-ids is required")
			}
			diamond, err := a.diamond(cmd.Context(), false)
			if err != nil {
				return err
			}

			var ids []*big.Int
			var names []string
			if symbolIDs != "" {
				if ids, err = parseBigs("symbol-ids", symbolIDs); err != nil {
					return err
				}
				names, err = diamond.SymbolNameByID(cmd.Context(), ids)
			} else {
				if ids, err = parseBigs("quote-ids", quoteIDs); err != nil {
					return err
				}
				names, err = diamond.SymbolNameByQuoteID(cmd.Context(), ids)
			}
			if err != nil {
				return err
			}
			for i, name := range names {
				if i < len(ids) {
					printf(cmd, "%s  %s\n", ids[i], name)
					continue
				}
				printf(cmd, "%s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbolIDs, "symbol-ids", "", "comma separated symbol ids")
	cmd.Flags().StringVar(&quoteIDs, "quote-ids", "", "comma separated quote ids")
	return cmd
}

// parties resolves --party-b and --party-a against the configured
// PARTY_B_ADDRESS and partyA.
func (a *app) parties(cmd *cobra.Command, partyB, partyA string) (common.Address, common.Address, error) {
	b, err := addressOr("party-b", partyB, a.cfg.OptionalAddress(config.PARTY_B_ADDRESS).OrEmpty())
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if partyA != "" {
		pa, err := parseAddress("party-a", partyA)
		return b, pa, err
	}
	pa, err := a.partyA(cmd.Context())
	return b, pa, err
}

func newPendingCmd(a *app) *cobra.Command {
	var partyB, partyA string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Print partyB's pending quotes for partyA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, pa, err := a.parties(cmd, partyB, partyA)
			if err != nil {
				return err
			}
			diamond, err := a.diamond(cmd.Context(), false)
			if err != nil {
				return err
			}
			quotes, err := diamond.GetPartyBPendingQuotes(cmd.Context(), b, pa)
			if err != nil {
				return err
			}
			if len(quotes) == 0 {
				printf(cmd, "no pending quotes\n")
			}
			for _, quote := range quotes {
				printf(cmd, "%s\n", quote)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&partyB, "party-b", "", "partyB; defaults to PARTY_B_ADDRESS")
	cmd.Flags().StringVar(&partyA, "party-a", "", "partyA; defaults to the sub-account or signer")
	return cmd
}

func newPositionsCountCmd(a *app) *cobra.Command {
	var partyB, partyA string
	cmd := &cobra.Command{
		Use:   "positions-count",
		Short: "Print how many positions partyB holds against partyA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, pa, err := a.parties(cmd, partyB, partyA)
			if err != nil {
				return err
			}
			diamond, err := a.diamond(cmd.Context(), false)
			if err != nil {
				return err
			}
			n, err := diamond.PartyBPositionsCount(cmd.Context(), b, pa)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&partyB, "party-b", "", "partyB; defaults to PARTY_B_ADDRESS")
	cmd.Flags().StringVar(&partyA, "party-a", "", "partyA; defaults to the sub-account or signer")
	return cmd
}

func newCooldownsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cooldowns",
		Short: "Print the force close cooldowns and the invalid bridged amounts pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			diamond, err := a.diamond(cmd.Context(), false)
			if err != nil {
				return err
			}
			cooldowns, err := diamond.ForceCloseCooldowns(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "force close first cooldown:  %ss\n", cooldowns.First)
			printf(cmd, "force close second cooldown: %ss\n", cooldowns.Second)

			pool, err := diamond.GetInvalidBridgedAmountsPool(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "invalid bridged amounts pool: %s\n", pool.Hex())
			return nil
		},
	}
}
