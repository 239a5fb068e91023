// cmd/cli/engine.go – Cobra CLI glue for the core Engine entry surface.
// -----------------------------------------------------------
// Structure of this file
//   - Middleware  (engine presence guard)
//   - Controller  (thin orchestrator around core.Engine methods)
//   - CLI Commands
//   - Consolidation – mounted under root "engine", exported as EngineCmd
//
// -----------------------------------------------------------
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	core "synnergy-network/core"
)

func ensureEngineInitialised(_ *cobra.Command, _ []string) error {
	if core.CurrentEngine() == nil {
		return fmt.Errorf("engine not initialised — start the engine process first")
	}
	return nil
}

type EngineController struct{}

func (c *EngineController) RegisterAssets(assets []core.AssetId, actor core.Principal) error {
	return core.CurrentEngine().RegisterAssets(assets, actor, nil)
}

func (c *EngineController) Deploy(actor core.Principal, shortID string, code []byte) (core.DexId, error) {
	return core.CurrentEngine().DeployDexCode(actor, shortID, code)
}

func (c *EngineController) Withdraw(ctx context.Context, actor core.Principal, asset core.AssetId, amount *core.Amount, to *string) error {
	return core.CurrentEngine().Withdraw(ctx, actor, asset, amount, to, nil)
}

func (c *EngineController) Transfer(from, to core.Principal, asset core.AssetId, amount core.Amount) error {
	return core.CurrentEngine().TransferAsset(from, to, asset, amount)
}

func (c *EngineController) BalanceOf(p core.Principal, a core.AssetId) (core.Amount, error) {
	return core.CurrentEngine().AssetBalanceOf(p, a)
}

var engineCmd = &cobra.Command{
	Use:               "engine",
	Short:             "Dex engine entry surface: asset registration, withdrawals, transfers, balances",
	PersistentPreRunE: ensureEngineInitialised,
}

var engineRegisterCmd = &cobra.Command{
	Use:   "register-assets <account> <asset> [asset...]",
	Short: "Register one or more balance entries for an account",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor := core.UserPrincipal(args[0])
		assets := make([]core.AssetId, 0, len(args)-1)
		for _, s := range args[1:] {
			a, err := core.ParseAssetId(s)
			if err != nil {
				return err
			}
			assets = append(assets, a)
		}
		ctrl := &EngineController{}
		if err := ctrl.RegisterAssets(assets, actor); err != nil {
			return err
		}
		fmt.Printf("registered %d asset(s) for %s\n", len(assets), actor)
		return nil
	},
}

var engineDeployCmd = &cobra.Command{
	Use:   "deploy <deployer-account> <short-id> <wasm-file>",
	Short: "Deploy tenant code and obtain its dex id",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("read wasm file: %w", err)
		}
		ctrl := &EngineController{}
		id, err := ctrl.Deploy(core.UserPrincipal(args[0]), args[1], code)
		if err != nil {
			return err
		}
		fmt.Println(id.String())
		return nil
	},
}

var engineWithdrawCmd = &cobra.Command{
	Use:   "withdraw <account> <asset> <amount> [to]",
	Short: "Dispatch an asynchronous withdrawal",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, err := core.ParseAssetId(args[1])
		if err != nil {
			return err
		}
		amt, ok := core.AmountFromString(args[2])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[2])
		}
		var to *string
		if len(args) == 4 {
			to = &args[3]
		}
		ctrl := &EngineController{}
		if err := ctrl.Withdraw(cmd.Context(), core.UserPrincipal(args[0]), asset, &amt, to); err != nil {
			return err
		}
		fmt.Println("withdrawal dispatched")
		return nil
	},
}

var engineTransferCmd = &cobra.Command{
	Use:   "transfer <from-account> <to-account> <asset> <amount>",
	Short: "Move a registered balance between two accounts",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, err := core.ParseAssetId(args[2])
		if err != nil {
			return err
		}
		amt, ok := core.AmountFromString(args[3])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[3])
		}
		ctrl := &EngineController{}
		if err := ctrl.Transfer(core.UserPrincipal(args[0]), core.UserPrincipal(args[1]), asset, amt); err != nil {
			return err
		}
		fmt.Println("transfer complete")
		return nil
	},
}

var engineBalanceCmd = &cobra.Command{
	Use:   "balance <account> <asset>",
	Short: "Look up a registered balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, err := core.ParseAssetId(args[1])
		if err != nil {
			return err
		}
		ctrl := &EngineController{}
		bal, err := ctrl.BalanceOf(core.UserPrincipal(args[0]), asset)
		if err != nil {
			return err
		}
		enc, _ := json.Marshal(map[string]string{"account": args[0], "asset": args[1], "balance": bal.String()})
		fmt.Println(string(enc))
		return nil
	},
}

func init() {
	engineCmd.AddCommand(
		engineRegisterCmd,
		engineDeployCmd,
		engineWithdrawCmd,
		engineTransferCmd,
		engineBalanceCmd,
	)
}

// EngineCmd is exported for mounting under the root command.
var EngineCmd = engineCmd
