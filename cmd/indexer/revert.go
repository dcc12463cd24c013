package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/synnergy-labs/chain-indexer/internal/config"
	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store/postgres"
	"github.com/synnergy-labs/chain-indexer/internal/telemetry"
)

// revertCmd manually triggers revert_state(to), the same operation the
// Extractor Runtime applies on an upstream Undo (§4.3), for an operator
// recovering a chain that has diverged from its extractor's stream.
func revertCmd() *cobra.Command {
	var chain, toHash string
	var toNumber uint64

	cmd := &cobra.Command{
		Use:   "revert",
		Short: "revert a chain's state to a given block",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chain == "" {
				return fmt.Errorf("--chain is required")
			}
			if !models.Chain(chain).Valid() {
				return fmt.Errorf("unknown chain %q", chain)
			}
			if toHash == "" && toNumber == 0 {
				return fmt.Errorf("one of --to-hash or --to-number is required")
			}

			var to models.BlockIdentifier
			if toHash != "" {
				to = models.BlockByHash(common.HexToHash(toHash))
			} else {
				to = models.BlockByNumber(models.Chain(chain), toNumber)
			}

			cfg, err := config.Load(envPath)
			if err != nil {
				return err
			}
			zapLog, err := telemetry.InitGlobalZap()
			if err != nil {
				return err
			}
			st, err := postgres.New(cmd.Context(), postgres.Config{DatabaseURL: cfg.DatabaseURL}, zapLog)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RevertState(cmd.Context(), to); err != nil {
				return err
			}
			fmt.Printf("reverted %s to %s\n", chain, to)
			return nil
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "chain tag, e.g. ethereum")
	cmd.Flags().StringVar(&toHash, "to-hash", "", "revert to this block hash")
	cmd.Flags().Uint64Var(&toNumber, "to-number", 0, "revert to this block number")
	return cmd
}
