// cmd/cli/otc.go – Cobra CLI glue for the intent-matching tenant
// (SPEC_FULL §4.5): a self-contained settlement engine with its own
// balances, authorized keys and nonce bookkeeping, separate from the host
// ledger except for the withdrawal requests a match produces.
package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	core "synnergy-network/core"
	otc "synnergy-network/core/otc"
)

func ensureTenantInitialised(_ *cobra.Command, _ []string) error {
	if otc.CurrentTenant() == nil {
		return fmt.Errorf("intent-matching tenant not initialised")
	}
	return nil
}

var otcCmd = &cobra.Command{
	Use:               "otc",
	Short:             "Intent-matching tenant: deposits, authorized keys, and batch settlement",
	PersistentPreRunE: ensureTenantInitialised,
}

var otcStorageDepositCmd = &cobra.Command{
	Use:   "storage-deposit <user> <amount>",
	Short: "Fund a user's storage balance within the tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amt, ok := core.AmountFromString(args[1])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		if err := otc.CurrentTenant().StorageDeposit(args[0], amt); err != nil {
			return err
		}
		fmt.Println("deposited")
		return nil
	},
}

var otcDepositCmd = &cobra.Command{
	Use:   "deposit <user> <asset> <amount>",
	Short: "Credit a user's tenant-internal balance for one asset",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, err := core.ParseAssetId(args[1])
		if err != nil {
			return err
		}
		amt, ok := core.AmountFromString(args[2])
		if !ok {
			return fmt.Errorf("invalid amount %q", args[2])
		}
		if err := otc.CurrentTenant().DepositAssets(args[0], map[string]core.Amount{asset.String(): amt}); err != nil {
			return err
		}
		fmt.Println("deposited")
		return nil
	},
}

var otcSetKeyCmd = &cobra.Command{
	Use:   "set-key <user> <ed25519|secp256k1> <hex-pubkey>",
	Short: "Register a user's authorized verification key",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("decode hex pubkey: %w", err)
		}
		var kind otc.KeyKind
		switch args[1] {
		case "ed25519":
			kind = otc.KeyEd25519
		case "secp256k1":
			kind = otc.KeySecp256k1
		default:
			return fmt.Errorf("unknown key kind %q, want ed25519 or secp256k1", args[1])
		}
		if err := otc.CurrentTenant().SetAuthorizedKey(args[0], otc.AuthorizedKey{Kind: kind, Bytes: raw}); err != nil {
			return err
		}
		fmt.Println("key registered")
		return nil
	},
}

var otcMatchCmd = &cobra.Command{
	Use:   "match <predecessor-account> <match-input.json>",
	Short: "Settle a batch of authorized trade intents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read match input: %w", err)
		}
		var input otc.MatchInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("decode match input: %w", err)
		}
		withdrawals, err := otc.CurrentTenant().Match(input, args[0], nil)
		if err != nil {
			return err
		}
		enc, _ := json.MarshalIndent(withdrawals, "", "  ")
		fmt.Println(string(enc))
		return nil
	},
}

func init() {
	otcCmd.AddCommand(
		otcStorageDepositCmd,
		otcDepositCmd,
		otcSetKeyCmd,
		otcMatchCmd,
	)
}

// OtcCmd is exported for mounting under the root command.
var OtcCmd = otcCmd
