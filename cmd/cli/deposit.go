// cmd/cli/deposit.go – Cobra CLI glue for the deposit-callback entry points
// (SPEC_FULL §6's deposit_near/ft_on_transfer/nft_on_transfer/mt_on_transfer)
// and the read-only dex_view call. Every command here logs a uuid
// correlation id alongside its result, the same way an outer transport would
// tag a request for tracing across the engine's EVENT_JSON: log lines.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	core "synnergy-network/core"
)

func loadOps(path string) ([]core.Operation, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ops file: %w", err)
	}
	var ops []core.Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("decode ops file: %w", err)
	}
	return ops, nil
}

var depositCmd = &cobra.Command{
	Use:               "deposit",
	Short:             "Deposit-callback entry points: deposit_near, ft/nft/mt_on_transfer",
	PersistentPreRunE: ensureEngineInitialised,
}

var depositNearCmd = &cobra.Command{
	Use:   "near <account> <amount> [--ops-file path]",
	Short: "Credit native asset to account, optionally running sandboxed operations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amt, ok := core.AmountFromString(args[1])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		opsFile, _ := cmd.Flags().GetString("ops-file")
		ops, err := loadOps(opsFile)
		if err != nil {
			return err
		}
		reqID := uuid.NewString()
		if err := core.CurrentEngine().DepositNear(cmd.Context(), args[0], amt, ops); err != nil {
			return fmt.Errorf("[%s] %w", reqID, err)
		}
		fmt.Printf("[%s] deposit_near credited\n", reqID)
		return nil
	},
}

var depositFtCmd = &cobra.Command{
	Use:   "ft <sender> <ft-contract> <amount> [--ops-file path]",
	Short: "Simulate an ft_on_transfer callback",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amt, ok := core.AmountFromString(args[2])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[2])
		}
		opsFile, _ := cmd.Flags().GetString("ops-file")
		ops, err := loadOps(opsFile)
		if err != nil {
			return err
		}
		reqID := uuid.NewString()
		refund, err := core.CurrentEngine().FtOnTransfer(cmd.Context(), args[0], args[1], amt, ops)
		if err != nil {
			return fmt.Errorf("[%s] %w", reqID, err)
		}
		fmt.Printf("[%s] refund=%s\n", reqID, refund)
		return nil
	},
}

var depositNftCmd = &cobra.Command{
	Use:   "nft <sender> <prev-owner> <nft-contract> <token-id> [--ops-file path]",
	Short: "Simulate an nft_on_transfer callback",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		opsFile, _ := cmd.Flags().GetString("ops-file")
		ops, err := loadOps(opsFile)
		if err != nil {
			return err
		}
		reqID := uuid.NewString()
		reject, err := core.CurrentEngine().NftOnTransfer(cmd.Context(), args[0], args[1], args[2], args[3], ops)
		if err != nil {
			return fmt.Errorf("[%s] %w", reqID, err)
		}
		fmt.Printf("[%s] reject=%v\n", reqID, reject)
		return nil
	},
}

var depositMtCmd = &cobra.Command{
	Use:   "mt <sender> <mt-contract> <prev-owners-csv> <token-ids-csv> <amounts-csv> [--ops-file path]",
	Short: "Simulate an mt_on_transfer callback",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		prevOwners := splitCSV(args[2])
		tokenIDs := splitCSV(args[3])
		amountStrs := splitCSV(args[4])
		amounts := make([]core.Amount, 0, len(amountStrs))
		for _, s := range amountStrs {
			amt, ok := core.AmountFromString(s)
			if !ok {
				return fmt.Errorf("invalid amount %q", s)
			}
			amounts = append(amounts, amt)
		}
		opsFile, _ := cmd.Flags().GetString("ops-file")
		ops, err := loadOps(opsFile)
		if err != nil {
			return err
		}
		reqID := uuid.NewString()
		reject, err := core.CurrentEngine().MtOnTransfer(cmd.Context(), args[0], prevOwners, tokenIDs, amounts, args[1], ops)
		if err != nil {
			return fmt.Errorf("[%s] %w", reqID, err)
		}
		fmt.Printf("[%s] reject=%v\n", reqID, reject)
		return nil
	},
}

var dexViewCmd = &cobra.Command{
	Use:   "view <dex-id> <export> [--args-file path]",
	Short: "Read-only invocation of a tenant export (dex_view)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dexID, err := core.ParseDexId(args[0])
		if err != nil {
			return err
		}
		argsFile, _ := cmd.Flags().GetString("args-file")
		var input []byte
		if argsFile != "" {
			input, err = os.ReadFile(argsFile)
			if err != nil {
				return fmt.Errorf("read args file: %w", err)
			}
		}
		reqID := uuid.NewString()
		out, err := core.CurrentEngine().DexView(cmd.Context(), dexID, args[1], input)
		if err != nil {
			return fmt.Errorf("[%s] %w", reqID, err)
		}
		fmt.Printf("[%s] %x\n", reqID, out)
		return nil
	},
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func init() {
	depositNearCmd.Flags().String("ops-file", "", "path to a JSON-encoded []core.Operation to run sandboxed against the deposit")
	depositFtCmd.Flags().String("ops-file", "", "path to a JSON-encoded []core.Operation to run sandboxed against the deposit")
	depositNftCmd.Flags().String("ops-file", "", "path to a JSON-encoded []core.Operation to run sandboxed against the deposit")
	depositMtCmd.Flags().String("ops-file", "", "path to a JSON-encoded []core.Operation to run sandboxed against the deposit")
	dexViewCmd.Flags().String("args-file", "", "path to the raw argument bytes passed to the tenant's view export")

	depositCmd.AddCommand(depositNearCmd, depositFtCmd, depositNftCmd, depositMtCmd)
	tradeCmd.AddCommand(dexViewCmd)
}

// DepositCmd is exported for mounting under the root command.
var DepositCmd = depositCmd
