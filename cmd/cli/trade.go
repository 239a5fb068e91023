// cmd/cli/trade.go – Cobra CLI glue for swap and arbitrary dex-call entry
// points (SPEC_FULL §4.1.1).
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	core "synnergy-network/core"
)

var tradeCmd = &cobra.Command{
	Use:               "trade",
	Short:             "Swap and arbitrary dex-call entry points",
	PersistentPreRunE: ensureEngineInitialised,
}

var swapCmd = &cobra.Command{
	Use:   "swap <account> <dex-id> <asset-in> <asset-out> <amount> [--exact-out] [--message-file path]",
	Short: "Execute a swap against a deployed tenant",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		dexID, err := core.ParseDexId(args[1])
		if err != nil {
			return err
		}
		assetIn, err := core.ParseAssetId(args[2])
		if err != nil {
			return err
		}
		assetOut, err := core.ParseAssetId(args[3])
		if err != nil {
			return err
		}
		amt, ok := core.AmountFromString(args[4])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[4])
		}
		exactOut, _ := cmd.Flags().GetBool("exact-out")
		msgFile, _ := cmd.Flags().GetString("message-file")
		var message []byte
		if msgFile != "" {
			message, err = os.ReadFile(msgFile)
			if err != nil {
				return fmt.Errorf("read message file: %w", err)
			}
		}
		actor := core.UserPrincipal(args[0])
		var resp core.SwapResponse
		if exactOut {
			resp, err = core.CurrentEngine().SwapSimpleExactOut(cmd.Context(), actor, dexID, message, assetIn, assetOut, amt)
		} else {
			resp, err = core.CurrentEngine().SwapSimpleExactIn(cmd.Context(), actor, dexID, message, assetIn, assetOut, amt)
		}
		if err != nil {
			return err
		}
		enc, _ := json.Marshal(map[string]string{"amount_in": resp.AmountIn.String(), "amount_out": resp.AmountOut.String()})
		fmt.Println(string(enc))
		return nil
	},
}

var dexCallCmd = &cobra.Command{
	Use:   "call <account> <dex-id> <method> [--args-file path]",
	Short: "Invoke an arbitrary exported method on a deployed tenant",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dexID, err := core.ParseDexId(args[1])
		if err != nil {
			return err
		}
		argsFile, _ := cmd.Flags().GetString("args-file")
		var methodArgs []byte
		if argsFile != "" {
			methodArgs, err = os.ReadFile(argsFile)
			if err != nil {
				return fmt.Errorf("read args file: %w", err)
			}
		}
		withdrawals, err := core.CurrentEngine().DexCallAuthorized(cmd.Context(), core.UserPrincipal(args[0]), dexID, args[2], methodArgs, nil)
		if err != nil {
			return err
		}
		fmt.Printf("call complete, %d withdraw request(s) queued\n", len(withdrawals))
		return nil
	},
}

func init() {
	swapCmd.Flags().Bool("exact-out", false, "treat amount as the fixed output (default: fixed input)")
	swapCmd.Flags().String("message-file", "", "path to the raw message bytes passed to the tenant's swap export")
	dexCallCmd.Flags().String("args-file", "", "path to the raw argument bytes passed to the tenant's export")
	tradeCmd.AddCommand(swapCmd, dexCallCmd)
}

// TradeCmd is exported for mounting under the root command.
var TradeCmd = tradeCmd
