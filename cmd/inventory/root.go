package inventory

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/memento/cmd/util"
	"github.com/ValentinKolb/memento/lib/vault"
	"github.com/spf13/cobra"
)

var (
	v      *vault.Vault
	output string

	// InventoryCommands represents the inventory command group
	InventoryCommands = &cobra.Command{
		Use:                "inventory",
		Short:              "Inspect the inventory document",
		PersistentPreRunE:  setupVault,
		PersistentPostRunE: func(*cobra.Command, []string) error { return util.CloseVault() },
	}

	// readCmd represents the read command
	readCmd = &cobra.Command{
		Use:   "read",
		Short: "Print the inventory document",
		Long:  "Print the inventory document. The read does not take the lock, so it may miss a write in flight.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := v.ReadInventory(cmd.Context())
			if err != nil {
				return err
			}
			return util.Print(os.Stdout, output, doc)
		},
	}

	// infoCmd represents the info command
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print information about the medium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := v.Info(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := v.ReadInventory(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("client=%s\n", v.Identity())
			fmt.Printf("medium=%s, keys=%d, size=%d bytes", info.DbType, info.Keys, info.SizeBytes)
			if info.QuotaBytes > 0 {
				fmt.Printf(", quota=%d bytes", info.QuotaBytes)
			}
			fmt.Printf("\nversion=%d, items=%d\n", doc.Version, len(doc.Items))
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to inventory command
	InventoryCommands.AddCommand(readCmd)
	InventoryCommands.AddCommand(infoCmd)

	// Add common client flags to the inventory command
	util.SetupClientFlags(InventoryCommands)

	readCmd.Flags().StringVarP(&output, "output", "o", "json", util.WrapString("Output format (json, yaml)"))
}

// setupVault opens the vault
func setupVault(cmd *cobra.Command, _ []string) (err error) {
	v, err = util.OpenVault(cmd)
	return err
}
