package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/config"
	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/multiaccount"
	"github.com/banky/go-symmio/symmio"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// accountFlag resolves --account, falling back to SUB_ACCOUNT_ADDRESS.
func (a *app) accountFlag(raw string) (common.Address, error) {
	return addressOr("account", raw, a.cfg.OptionalAddress(config.SUB_ACCOUNT_ADDRESS).OrEmpty())
}

func newMultiAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "multiaccount",
		Aliases: []string{"ma"},
		Short:   "Sub-accounts owned through the multi-account contract",
	}

	cmd.AddCommand(
		newAddAccountCmd(a),
		newRenameAccountCmd(a),
		newAccountAmountCmd(a, "deposit", "Approve collateral and deposit it into a sub-account",
			(*multiaccount.MultiAccount).DepositForAccount),
		newAccountAmountCmd(a, "deposit-allocate", "Approve collateral, deposit and allocate it for a sub-account",
			(*multiaccount.MultiAccount).DepositAndAllocateForAccount),
		newAccountAmountCmd(a, "withdraw", "Withdraw collateral from a sub-account",
			(*multiaccount.MultiAccount).WithdrawFromAccount),
		newDelegateCmd(a),
		newDelegateManyCmd(a),
		newListAccountsCmd(a),
		newCountAccountsCmd(a),
		newOwnerCmd(a),
		newSubAccountForceCloseCmd(a, false),
		newSubAccountForceCloseCmd(a, true),
		newSubAccountCloseCmd(a),
		newSubAccountQuoteCmd(a, "cancel", "Cancel a sub-account's pending quote", symmio.RequestToCancelQuoteCall),
		newSubAccountQuoteCmd(a, "cancel-close", "Cancel a sub-account's close request", symmio.RequestToCancelCloseRequestCall),
	)
	return cmd
}

func newAddAccountCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a sub-account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return sent(cmd)(m.AddAccount(cmd.Context(), name))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sub-account name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newRenameAccountCmd(a *app) *cobra.Command {
	var account, name string
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename a sub-account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.accountFlag(account)
			if err != nil {
				return err
			}
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return sent(cmd)(m.EditAccountName(cmd.Context(), acct, name))
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.MarkFlagRequired("name")
	return cmd
}

type accountAmountFunc func(
	m *multiaccount.MultiAccount,
	ctx context.Context,
	account common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error)

func newAccountAmountCmd(a *app, use, short string, write accountAmountFunc) *cobra.Command {
	var account string
	cmd := amountCmd(use, short, func(cmd *cobra.Command, amount *big.Int) error {
		acct, err := a.accountFlag(account)
		if err != nil {
			return err
		}
		m, err := a.multiAccount(cmd.Context(), nil)
		if err != nil {
			return err
		}
		return sent(cmd)(write(m, cmd.Context(), acct, amount))
	})
	cmd.Flags().StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	return cmd
}

func newDelegateCmd(a *app) *cobra.Command {
	var (
		account, target, method string
		state                   bool
	)
	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Grant or revoke a target's access to one diamond method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.accountFlag(account)
			if err != nil {
				return err
			}
			to, err := parseAddress("target", target)
			if err != nil {
				return err
			}
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return sent(cmd)(m.DelegateAccess(cmd.Context(), acct, to, method, state))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	flags.StringVar(&target, "target", "", "delegate address")
	flags.StringVar(&method, "method", "", "diamond method name or 0x selector")
	flags.BoolVar(&state, "state", true, "true grants, false revokes")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("method")
	return cmd
}

func newDelegateManyCmd(a *app) *cobra.Command {
	var (
		account, target, methods string
		state                    bool
	)
	cmd := &cobra.Command{
		Use:   "delegate-many",
		Short: "Grant or revoke a target's access to several diamond methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.accountFlag(account)
			if err != nil {
				return err
			}
			to, err := parseAddress("target", target)
			if err != nil {
				return err
			}
			names := utils.SplitList(methods)
			if len(names) == 0 {
				return fmt.Errorf("--methods needs at least one value")
			}
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return sent(cmd)(m.DelegateAccesses(cmd.Context(), acct, to, names, state))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	flags.StringVar(&target, "target", "", "delegate address")
	flags.StringVar(&methods, "methods", "", "comma separated method names or 0x selectors")
	flags.BoolVar(&state, "state", true, "true grants, false revokes")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("methods")
	return cmd
}

// ownerFlag resolves --user, falling back to the signer.
func (a *app) ownerFlag(cmd *cobra.Command, raw string) (common.Address, error) {
	if raw != "" {
		return parseAddress("user", raw)
	}
	signer, err := a.signer(cmd.Context())
	if err != nil {
		return common.Address{}, err
	}
	return signer.From(), nil
}

func newListAccountsCmd(a *app) *cobra.Command {
	var (
		user        string
		start, size int64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's sub-accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerFlag(cmd, user)
			if err != nil {
				return err
			}
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			accounts, err := m.GetAccounts(cmd.Context(), owner, big.NewInt(start), big.NewInt(size))
			if err != nil {
				return err
			}
			for _, acct := range accounts {
				printf(cmd, "%s  %s\n", acct.AccountAddress.Hex(), acct.Name)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&user, "user", "", "account owner; defaults to the signer")
	flags.Int64Var(&start, "start", 0, "first index")
	flags.Int64Var(&size, "size", 50, "page size")
	return cmd
}

func newCountAccountsCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print how many sub-accounts a user owns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.ownerFlag(cmd, user)
			if err != nil {
				return err
			}
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			n, err := m.GetAccountsLength(cmd.Context(), owner)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "account owner; defaults to the signer")
	return cmd
}

func newOwnerCmd(a *app) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Print the owner of a sub-account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.accountFlag(account)
			if err != nil {
				return err
			}
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			owner, err := m.Owner(cmd.Context(), acct)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", owner.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	return cmd
}

// subAccountFlows builds the attestation-gated client acting for account
// through the multi-account.
func (a *app) subAccountFlows(cmd *cobra.Command, account common.Address) (*symmio.Client, error) {
	diamond, err := a.diamond(cmd.Context(), true)
	if err != nil {
		return nil, err
	}
	m, err := a.multiAccount(cmd.Context(), diamond)
	if err != nil {
		return nil, err
	}
	return symmio.NewClient(symmio.ClientConfig{
		Diamond:  diamond,
		Oracle:   a.oracle(),
		ChainID:  a.cfg.ChainIDBig(),
		PartyA:   account,
		Executor: m.For(account),
		Logger:   &a.logger,
	})
}

func newSubAccountForceCloseCmd(a *app, settle bool) *cobra.Command {
	var account, quoteID string

	use, short := "force-close", "Force close a sub-account's position"
	if settle {
		use, short = "settle-force-close", "Settle and force close a sub-account's position"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.accountFlag(account)
			if err != nil {
				return err
			}
			id, err := parseBig("quote-id", quoteID)
			if err != nil {
				return err
			}
			flows, err := a.subAccountFlows(cmd, acct)
			if err != nil {
				return err
			}
			if settle {
				return sent(cmd)(flows.SettleAndForceClose(cmd.Context(), id))
			}
			return sent(cmd)(flows.ForceClose(cmd.Context(), id))
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	cmd.Flags().StringVar(&quoteID, "quote-id", "", "quote id")
	cmd.MarkFlagRequired("quote-id")
	return cmd
}

func newSubAccountCloseCmd(a *app) *cobra.Command {
	var (
		account, quoteID, price, quantity string
		orderType                         int64
		deadlineOffset                    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Request to close a sub-account's position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.accountFlag(account)
			if err != nil {
				return err
			}
			id, err := parseBig("quote-id", quoteID)
			if err != nil {
				return err
			}
			closePrice, err := parseWei("price", price)
			if err != nil {
				return err
			}
			qty, err := parseWei("quantity", quantity)
			if err != nil {
				return err
			}
			m, err := a.multiAccount(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return sent(cmd)(m.For(acct).RequestToClosePosition(cmd.Context(), symmio.CloseRequest{
				QuoteID:         id,
				ClosePrice:      closePrice,
				QuantityToClose: qty,
				OrderType:       types.OrderType(orderType),
				Deadline:        big.NewInt(time.Now().Add(deadlineOffset).Unix()),
			}))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	flags.StringVar(&quoteID, "quote-id", "", "quote id")
	flags.StringVar(&price, "price", "", "close price")
	flags.StringVar(&quantity, "quantity", "", "quantity to close")
	flags.Int64Var(&orderType, "order-type", int64(types.MARKET), "0=limit, 1=market")
	flags.DurationVar(&deadlineOffset, "deadline-offset", time.Hour, "close request deadline from now")
	cmd.MarkFlagRequired("quote-id")
	cmd.MarkFlagRequired("price")
	cmd.MarkFlagRequired("quantity")
	return cmd
}

func newSubAccountQuoteCmd(a *app, use, short string, build func(*big.Int) chain.Call) *cobra.Command {
	var account string
	cmd := quoteIDCmd(use, short, func(cmd *cobra.Command, id *big.Int) error {
		acct, err := a.accountFlag(account)
		if err != nil {
			return err
		}
		m, err := a.multiAccount(cmd.Context(), nil)
		if err != nil {
			return err
		}
		return sent(cmd)(m.For(acct).Exec(cmd.Context(), build(id)))
	})
	cmd.Flags().StringVar(&account, "account", "", "sub-account; defaults to SUB_ACCOUNT_ADDRESS")
	return cmd
}
