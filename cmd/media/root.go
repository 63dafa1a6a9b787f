package media

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/memento/cmd/util"
	"github.com/ValentinKolb/memento/lib/blob"
	"github.com/ValentinKolb/memento/lib/vault"
	"github.com/spf13/cobra"
)

var (
	v *vault.Vault

	// MediaCommands represents the media command group
	MediaCommands = &cobra.Command{
		Use:                "media",
		Short:              "Upload, fetch and clean up media blobs",
		PersistentPreRunE:  setupVault,
		PersistentPostRunE: func(*cobra.Command, []string) error { return util.CloseVault() },
	}

	uploadImageCmd = &cobra.Command{
		Use:   "upload-image [file]",
		Short: "Uploads an image and prints its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			id, err := v.UploadImage(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	uploadAudioCmd = &cobra.Command{
		Use:   "upload-audio [file]",
		Short: "Uploads an audio recording and prints its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			id, err := v.UploadAudio(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Prints the data URL of a blob, or writes its bytes to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := blob.ID(args[0])
			out, _ := cmd.Flags().GetString("out")

			if out == "" {
				url, found, err := v.GetMediaURL(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("blob %s does not exist", id)
				}
				fmt.Println(url)
				return nil
			}

			data, found, err := v.GetMedia(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("blob %s does not exist", id)
			}
			return os.WriteFile(out, data, 0640)
		},
	}
	gcCmd = &cobra.Command{
		Use:   "gc",
		Short: "Deletes blobs no item refers to",
		Long: `Deletes blobs no item refers to.

A blob uploaded for an item that is not saved yet is indistinguishable from an orphan.
Only run gc while no other client is capturing items, or use --dry-run first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			orphans, err := v.Reconcile(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			for _, id := range orphans {
				fmt.Println(id)
			}
			if dryRun {
				fmt.Printf("found %d orphaned blob(s)\n", len(orphans))
			} else {
				fmt.Printf("deleted %d orphaned blob(s)\n", len(orphans))
			}
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the media command
	util.SetupClientFlags(MediaCommands)

	// Add subcommands
	MediaCommands.AddCommand(uploadImageCmd)
	MediaCommands.AddCommand(uploadAudioCmd)
	MediaCommands.AddCommand(getCmd)
	MediaCommands.AddCommand(gcCmd)

	getCmd.Flags().String("out", "", util.WrapString("Write the blob bytes to this file instead of printing the data URL"))
	gcCmd.Flags().Bool("dry-run", false, util.WrapString("Only list the orphaned blobs"))
}

// setupVault opens the vault
func setupVault(cmd *cobra.Command, _ []string) (err error) {
	v, err = util.OpenVault(cmd)
	return err
}
