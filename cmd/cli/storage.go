// cmd/cli/storage.go – Cobra CLI glue for user/dex storage-balance pools.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	core "synnergy-network/core"
)

var storageCmd = &cobra.Command{
	Use:               "storage",
	Short:             "Prepaid storage-byte balance pools (user and dex)",
	PersistentPreRunE: ensureEngineInitialised,
}

var storageUserDepositCmd = &cobra.Command{
	Use:   "user-deposit <account> <amount>",
	Short: "Top up a user's prepaid storage balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amt, ok := core.AmountFromString(args[1])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		if err := core.CurrentEngine().UserStorageDeposit(args[0], amt); err != nil {
			return err
		}
		fmt.Println("deposited")
		return nil
	},
}

var storageUserWithdrawCmd = &cobra.Command{
	Use:   "user-withdraw <account> [amount]",
	Short: "Withdraw from a user's available storage balance (all if amount omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var amt core.Amount
		all := len(args) == 1
		if !all {
			var ok bool
			amt, ok = core.AmountFromString(args[1])
			if !ok {
				return fmt.Errorf("invalid amount %q", args[1])
			}
		}
		out, err := core.CurrentEngine().UserStorageWithdraw(args[0], amt, all)
		if err != nil {
			return err
		}
		fmt.Println(out.String())
		return nil
	},
}

var storageUserBalanceCmd = &cobra.Command{
	Use:   "user-balance <account>",
	Short: "Show a user's storage balance (total / used)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bal, ok := core.CurrentEngine().UserStorageBalanceOf(args[0])
		if !ok {
			return fmt.Errorf("no storage balance for %s", args[0])
		}
		enc, _ := json.Marshal(map[string]string{"total": bal.Total.String(), "used": bal.Used.String()})
		fmt.Println(string(enc))
		return nil
	},
}

var storageDexDepositCmd = &cobra.Command{
	Use:   "dex-deposit <dex-id> <amount>",
	Short: "Top up a deployed tenant's prepaid storage balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dexID, err := core.ParseDexId(args[0])
		if err != nil {
			return err
		}
		amt, ok := core.AmountFromString(args[1])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		if err := core.CurrentEngine().DexStorageDeposit(core.UserPrincipal(dexID.Deployer), dexID, amt); err != nil {
			return err
		}
		fmt.Println("deposited")
		return nil
	},
}

var storageDexWithdrawCmd = &cobra.Command{
	Use:   "dex-withdraw <deployer-account> <dex-id> [amount]",
	Short: "Withdraw from a dex's available storage balance; deployer-only",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dexID, err := core.ParseDexId(args[1])
		if err != nil {
			return err
		}
		var amt core.Amount
		all := len(args) == 2
		if !all {
			var ok bool
			amt, ok = core.AmountFromString(args[2])
			if !ok {
				return fmt.Errorf("invalid amount %q", args[2])
			}
		}
		out, err := core.CurrentEngine().DexStorageWithdraw(core.UserPrincipal(args[0]), dexID, amt, all)
		if err != nil {
			return err
		}
		fmt.Println(out.String())
		return nil
	},
}

func init() {
	storageCmd.AddCommand(
		storageUserDepositCmd,
		storageUserWithdrawCmd,
		storageUserBalanceCmd,
		storageDexDepositCmd,
		storageDexWithdrawCmd,
	)
}

// StorageCmd is exported for mounting under the root command.
var StorageCmd = storageCmd
