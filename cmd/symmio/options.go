package main

import (
	"math/big"

	"github.com/banky/go-symmio/config"
	"github.com/banky/go-symmio/options"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// collateralFlag resolves --collateral, falling back to COLLATERAL_ADDRESS.
func (a *app) collateralFlag(raw string) (common.Address, error) {
	return addressOr("collateral", raw, a.cfg.OptionalAddress(config.COLLATERAL_ADDRESS).OrEmpty())
}

// optionsAmountCmd builds an options write over --collateral and --amount.
func optionsAmountCmd(
	a *app,
	use, short string,
	run func(cmd *cobra.Command, c *options.Client, collateral common.Address, amount *big.Int) error,
) *cobra.Command {
	var collateral string
	cmd := amountCmd(use, short, func(cmd *cobra.Command, amount *big.Int) error {
		token, err := a.collateralFlag(collateral)
		if err != nil {
			return err
		}
		c, err := a.options(cmd.Context(), true)
		if err != nil {
			return err
		}
		return run(cmd, c, token, amount)
	})
	cmd.Flags().StringVar(&collateral, "collateral", "", "collateral token; defaults to COLLATERAL_ADDRESS")
	return cmd
}

func newOptionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Balances and intents on the options diamond",
	}

	deposit := optionsAmountCmd(a, "deposit", "Approve collateral and deposit it",
		func(cmd *cobra.Command, c *options.Client, collateral common.Address, amount *big.Int) error {
			return sent(cmd)(c.Deposit(cmd.Context(), collateral, amount))
		})

	var user string
	depositFor := optionsAmountCmd(a, "deposit-for", "Approve collateral and deposit it for another user",
		func(cmd *cobra.Command, c *options.Client, collateral common.Address, amount *big.Int) error {
			to, err := parseAddress("user", user)
			if err != nil {
				return err
			}
			return sent(cmd)(c.DepositFor(cmd.Context(), collateral, to, amount))
		})
	depositFor.Flags().StringVar(&user, "user", "", "account credited with the deposit")
	depositFor.MarkFlagRequired("user")

	var allocateTo string
	allocate := optionsAmountCmd(a, "allocate", "Allocate balance towards a counterparty",
		func(cmd *cobra.Command, c *options.Client, collateral common.Address, amount *big.Int) error {
			counterParty, err := parseAddress("counter-party", allocateTo)
			if err != nil {
				return err
			}
			return sent(cmd)(c.Allocate(cmd.Context(), collateral, counterParty, amount))
		})
	allocate.Flags().StringVar(&allocateTo, "counter-party", "", "counterparty the balance is allocated to")
	allocate.MarkFlagRequired("counter-party")

	var (
		deallocateFrom, method string
		isPartyB               bool
	)
	deallocate := optionsAmountCmd(a, "deallocate", "Deallocate balance with an oracle uPnL signature",
		func(cmd *cobra.Command, c *options.Client, collateral common.Address, amount *big.Int) error {
			counterParty, err := parseAddress("counter-party", deallocateFrom)
			if err != nil {
				return err
			}
			return sent(cmd)(c.Deallocate(cmd.Context(), options.DeallocateParams{
				Collateral:   collateral,
				CounterParty: counterParty,
				Amount:       amount,
				IsPartyB:     isPartyB,
				Method:       method,
			}))
		})
	deallocate.Flags().StringVar(&deallocateFrom, "counter-party", "", "counterparty the balance was allocated to")
	deallocate.Flags().BoolVar(&isPartyB, "party-b", false, "deallocate as partyB")
	deallocate.Flags().StringVar(&method, "method", "", "oracle method; defaults to the options uPnL method")
	deallocate.MarkFlagRequired("counter-party")

	reserve := optionsAmountCmd(a, "reserve-allocate", "Move balance into the reserve balance",
		func(cmd *cobra.Command, c *options.Client, collateral common.Address, amount *big.Int) error {
			return sent(cmd)(c.AllocateToReserveBalance(cmd.Context(), collateral, amount))
		})

	var to, provider, userData string
	express := optionsAmountCmd(a, "express-withdraw", "Start an express withdrawal through a provider",
		func(cmd *cobra.Command, c *options.Client, collateral common.Address, amount *big.Int) error {
			receiver, err := parseAddress("to", to)
			if err != nil {
				return err
			}
			via, err := parseAddress("provider", provider)
			if err != nil {
				return err
			}
			data, err := options.ParseUserData(userData)
			if err != nil {
				return err
			}
			return sent(cmd)(c.InitiateExpressWithdraw(cmd.Context(), options.ExpressWithdrawParams{
				Collateral: collateral,
				Amount:     amount,
				To:         receiver,
				Provider:   via,
				UserData:   data,
			}))
		})
	express.Flags().StringVar(&to, "to", "", "receiver of the withdrawal")
	express.Flags().StringVar(&provider, "provider", "", "express withdraw provider")
	express.Flags().StringVar(&userData, "user-data", "", "provider data, 0x hex or raw text")
	express.MarkFlagRequired("to")
	express.MarkFlagRequired("provider")

	cmd.AddCommand(
		deposit,
		depositFor,
		allocate,
		deallocate,
		reserve,
		newOptionsSyncCmd(a),
		express,
		&cobra.Command{
			Use:   "deactivate",
			Short: "Leave instant action mode",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.options(cmd.Context(), true)
				if err != nil {
					return err
				}
				return sent(cmd)(c.DeactivateInstantActionMode(cmd.Context()))
			},
		},
		newCancelCloseIntentCmd(a),
		newOptionsViewCmd(a),
	)
	return cmd
}

func newOptionsSyncCmd(a *app) *cobra.Command {
	var collateral, partyA, partyBs string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync partyA's balances with its partyBs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.collateralFlag(collateral)
			if err != nil {
				return err
			}
			pa, err := parseAddress("party-a", partyA)
			if err != nil {
				return err
			}
			bs, err := parseAddresses("party-bs", partyBs)
			if err != nil {
				return err
			}
			c, err := a.options(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(c.SyncBalances(cmd.Context(), token, pa, bs))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&collateral, "collateral", "", "collateral token; defaults to COLLATERAL_ADDRESS")
	flags.StringVar(&partyA, "party-a", "", "partyA")
	flags.StringVar(&partyBs, "party-bs", "", "comma separated partyB addresses")
	cmd.MarkFlagRequired("party-a")
	cmd.MarkFlagRequired("party-bs")
	return cmd
}

func newCancelCloseIntentCmd(a *app) *cobra.Command {
	var intentIDs string
	cmd := &cobra.Command{
		Use:   "cancel-close",
		Short: "Cancel pending close intents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseBigs("intent-ids", intentIDs)
			if err != nil {
				return err
			}
			c, err := a.options(cmd.Context(), true)
			if err != nil {
				return err
			}
			return sent(cmd)(c.CancelCloseIntent(cmd.Context(), ids))
		},
	}
	cmd.Flags().StringVar(&intentIDs, "intent-ids", "", "comma separated close intent ids")
	cmd.MarkFlagRequired("intent-ids")
	return cmd
}

type optionsView struct {
	options.State
	ActiveOpenIntents string `json:",omitempty"`
	LockedBalance     string `json:",omitempty"`
	Whitelisted       *bool  `json:",omitempty"`
}

func newOptionsViewCmd(a *app) *cobra.Command {
	var user, collateral string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print the options diamond state and, with --user, the user's intents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.options(ctx, false)
			if err != nil {
				return err
			}
			state, err := c.State(ctx)
			if err != nil {
				return err
			}
			view := optionsView{State: state}

			token, tokenErr := a.collateralFlag(collateral)
			if tokenErr == nil {
				ok, err := c.IsWhitelistedCollateral(ctx, token)
				if err != nil {
					return err
				}
				view.Whitelisted = &ok
			}

			if user != "" {
				account, err := parseAddress("user", user)
				if err != nil {
					return err
				}
				active, err := c.GetActiveOpenIntentsCount(ctx, account)
				if err != nil {
					return err
				}
				view.ActiveOpenIntents = active.String()
				if tokenErr == nil {
					locked, err := c.GetIsolatedLockedBalance(ctx, account, token)
					if err != nil {
						return err
					}
					view.LockedBalance = locked.String()
				}
			}
			return printJSON(cmd, view)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "account to inspect")
	cmd.Flags().StringVar(&collateral, "collateral", "", "collateral token; defaults to COLLATERAL_ADDRESS")
	return cmd
}
