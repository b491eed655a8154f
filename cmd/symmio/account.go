package main

import (
	"math/big"

	"github.com/banky/go-symmio/config"
	"github.com/banky/go-symmio/erc20"
	"github.com/banky/go-symmio/symmio"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func newSettleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle uPnL with oracle settlement signatures",
	}

	var quoteIDs string
	upnl := &cobra.Command{
		Use:   "upnl",
		Short: "Settle the uPnL of partyA's quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseBigs("quote-ids", quoteIDs)
			if err != nil {
				return err
			}
			flows, err := a.flows(cmd.Context(), false)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.SettleUpnl(cmd.Context(), ids))
		},
	}
	upnl.Flags().StringVar(&quoteIDs, "quote-ids", "", "comma separated quote ids")
	upnl.MarkFlagRequired("quote-ids")

	cmd.AddCommand(
		upnl,
		quoteIDCmd("force-close", "Settle and force close a position in one transaction", func(cmd *cobra.Command, id *big.Int) error {
			flows, err := a.flows(cmd.Context(), false)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.SettleAndForceClose(cmd.Context(), id))
		}),
	)
	return cmd
}

func newFundingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "funding",
		Short: "Funding rate payments",
	}

	var partyA, quoteIDs, rates string
	charge := &cobra.Command{
		Use:   "charge",
		Short: "Charge funding on partyA's quotes as partyB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			party, err := parseAddress("party-a", partyA)
			if err != nil {
				return err
			}
			ids, err := parseBigs("quote-ids", quoteIDs)
			if err != nil {
				return err
			}
			values, err := parseBigs("rates", rates)
			if err != nil {
				return err
			}
			flows, err := a.flows(cmd.Context(), false)
			if err != nil {
				return err
			}
			return sent(cmd)(flows.ChargeFundingRate(cmd.Context(), party, ids, values))
		},
	}
	flags := charge.Flags()
	flags.StringVar(&partyA, "party-a", "", "partyA paying or receiving funding")
	flags.StringVar(&quoteIDs, "quote-ids", "", "comma separated quote ids")
	flags.StringVar(&rates, "rates", "", "comma separated signed wei rates, one per quote")
	charge.MarkFlagRequired("party-a")
	charge.MarkFlagRequired("quote-ids")
	charge.MarkFlagRequired("rates")

	cmd.AddCommand(charge)
	return cmd
}

// amountCmd builds a write that takes an --amount in wei.
func amountCmd(use, short string, run func(cmd *cobra.Command, amount *big.Int) error) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseBig("amount", raw)
			if err != nil {
				return err
			}
			return run(cmd, amount)
		},
	}
	cmd.Flags().StringVar(&raw, "amount", "", "amount in the token's smallest unit")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Balances held directly on the diamond",
	}

	var partyB string
	reserveDeposit := amountCmd("reserve-deposit", "Deposit into partyB's reserve vault", func(cmd *cobra.Command, amount *big.Int) error {
		diamond, err := a.diamond(cmd.Context(), true)
		if err != nil {
			return err
		}
		party, err := addressOr("party-b", partyB, a.cfg.OptionalAddress(config.PARTY_B_ADDRESS).OrEmpty())
		if err != nil {
			return err
		}
		return sent(cmd)(diamond.DepositToReserveVault(cmd.Context(), amount, party))
	})
	reserveDeposit.Flags().StringVar(&partyB, "party-b", "", "partyB owning the vault; defaults to PARTY_B_ADDRESS")

	var origin, recipient string
	transfer := amountCmd("transfer-allocation", "Move allocated balance between partyA accounts as partyB", func(cmd *cobra.Command, amount *big.Int) error {
		from, err := parseAddress("origin", origin)
		if err != nil {
			return err
		}
		to, err := parseAddress("recipient", recipient)
		if err != nil {
			return err
		}
		flows, err := a.flows(cmd.Context(), false)
		if err != nil {
			return err
		}
		return sent(cmd)(flows.TransferAllocation(cmd.Context(), amount, from, to))
	})
	transfer.Flags().StringVar(&origin, "origin", "", "partyA the balance moves from")
	transfer.Flags().StringVar(&recipient, "recipient", "", "partyA the balance moves to")
	transfer.MarkFlagRequired("origin")
	transfer.MarkFlagRequired("recipient")

	var txIDs string
	bridge := &cobra.Command{
		Use:   "bridge-withdraw",
		Short: "Withdraw values received from bridges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseBigs("transaction-ids", txIDs)
			if err != nil {
				return err
			}
			diamond, err := a.diamond(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(diamond.WithdrawReceivedBridgeValues(cmd.Context(), ids))
		},
	}
	bridge.Flags().StringVar(&txIDs, "transaction-ids", "", "comma separated bridge transaction ids")
	bridge.MarkFlagRequired("transaction-ids")

	cmd.AddCommand(
		amountCmd("deposit-allocate", "Approve collateral, deposit and allocate it", func(cmd *cobra.Command, amount *big.Int) error {
			diamond, err := a.diamond(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(diamond.DepositAndAllocate(cmd.Context(), amount))
		}),
		reserveDeposit,
		amountCmd("reserve-withdraw", "Withdraw from the signer's reserve vault", func(cmd *cobra.Command, amount *big.Int) error {
			diamond, err := a.diamond(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(diamond.WithdrawFromReserveVault(cmd.Context(), amount))
		}),
		transfer,
		bridge,
		newAccountInfoCmd(a),
	)
	return cmd
}

type accountInfo struct {
	Account          common.Address `json:"account"`
	Allocated        string         `json:"allocated_balance"`
	ReserveVault     string         `json:"reserve_vault,omitempty"`
	CollateralWallet string         `json:"collateral_balance,omitempty"`
	Allowance        string         `json:"collateral_allowance,omitempty"`
}

func newAccountInfoCmd(a *app) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print partyA balances and, with COLLATERAL_ADDRESS, wallet collateral",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			diamond, err := a.diamond(ctx, false)
			if err != nil {
				return err
			}

			var party common.Address
			if account != "" {
				if party, err = parseAddress("account", account); err != nil {
					return err
				}
			} else if party, err = a.partyA(ctx); err != nil {
				return err
			}

			balances, err := diamond.BalanceInfoOfPartyA(ctx, party)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", balances)

			info := accountInfo{Account: party}
			allocated, err := diamond.AllocatedBalanceOfPartyA(ctx, party)
			if err != nil {
				return err
			}
			info.Allocated = allocated.String()

			if vault, err := diamond.BalanceOfReserveVault(ctx, party); err == nil {
				info.ReserveVault = vault.String()
			}
			if collateral, ok := a.cfg.OptionalAddress(config.COLLATERAL_ADDRESS).Get(); ok {
				if err := collateralInfo(cmd, a, collateral, diamond, party, &info); err != nil {
					return err
				}
			}
			return printJSON(cmd, info)
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account to inspect; defaults to partyA")
	return cmd
}

func collateralInfo(
	cmd *cobra.Command,
	a *app,
	collateral common.Address,
	diamond *symmio.Diamond,
	owner common.Address,
	info *accountInfo,
) error {
	backend, err := a.chainBackend(cmd.Context())
	if err != nil {
		return err
	}
	token := erc20.New(collateral, nil, backend, nil)

	balance, err := token.BalanceOf(cmd.Context(), owner)
	if err != nil {
		return err
	}
	allowance, err := token.Allowance(cmd.Context(), owner, diamond.Address())
	if err != nil {
		return err
	}
	info.CollateralWallet = balance.String()
	info.Allowance = allowance.String()
	return nil
}
