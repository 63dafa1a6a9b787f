package item

import (
	"github.com/ValentinKolb/memento/cmd/util"
	"github.com/ValentinKolb/memento/lib/vault"
	"github.com/spf13/cobra"
)

var (
	v *vault.Vault

	// ItemCommands represents the item command group
	ItemCommands = &cobra.Command{
		Use:                "item",
		Short:              "Create, change and delete inventory items",
		PersistentPreRunE:  setupVault,
		PersistentPostRunE: func(*cobra.Command, []string) error { return util.CloseVault() },
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the item command
	util.SetupClientFlags(ItemCommands)

	// Add subcommands
	ItemCommands.AddCommand(saveCmd)
	ItemCommands.AddCommand(deleteCmd)
	ItemCommands.AddCommand(listCmd)
	ItemCommands.AddCommand(getCmd)
}

// setupVault opens the vault
func setupVault(cmd *cobra.Command, _ []string) (err error) {
	v, err = util.OpenVault(cmd)
	return err
}
