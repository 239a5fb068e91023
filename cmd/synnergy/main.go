package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-network/cmd/cli"
	core "synnergy-network/core"
	otc "synnergy-network/core/otc"
	pkgconfig "synnergy-network/pkg/config"
	"synnergy-network/pkg/utils"
)

func main() {
	log := logrus.StandardLogger()

	cfg, err := pkgconfig.LoadFromEnv()
	if err != nil {
		log.Warnf("config load failed, continuing with defaults: %v", err)
		cfg = &pkgconfig.Config{}
	}
	if cfg.Logging.Level != "" {
		if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			log.SetLevel(lvl)
		}
	}

	byteCost, ok := core.AmountFromString(cfg.Engine.StorageByteCost)
	if !ok {
		byteCost = core.ZeroAmount()
	}

	engine := core.NewEngine(log, byteCost, core.NewFakeTransferer())
	core.InitEngine(engine)
	otc.InitTenant(otc.NewTenant(byteCost, log))

	rootCmd := &cobra.Command{
		Use:   "synnergy",
		Short: "Multi-tenant WASM-sandboxed dex engine",
	}
	cli.RegisterRoutes(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, utils.Wrap(err, "command failed"))
		os.Exit(1)
	}
}
