package item

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ValentinKolb/memento/cmd/util"
	"github.com/ValentinKolb/memento/lib/inventory"
	"github.com/spf13/cobra"
)

var (
	saveCmd = &cobra.Command{
		Use:   "save",
		Short: "Creates a new item or replaces an existing one",
		Long: `Creates a new item or replaces an existing one.

Without --id a new draft is created. With --id the stored item is loaded, the given
flags are applied and the whole item is written back. Media files are uploaded
before the item is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()

			id, _ := flags.GetString("id")
			var item inventory.Item
			if id == "" {
				item = v.NewItem()
			} else {
				doc, err := v.ReadInventory(ctx)
				if err != nil {
					return err
				}
				var ok bool
				if item, ok = doc.Items[id]; !ok {
					return fmt.Errorf("item %s does not exist", id)
				}
				item.UpdatedAt = v.Now().UnixMilli()
			}

			if flags.Changed("status") {
				s, _ := flags.GetString("status")
				status, err := inventory.ParseStatus(s)
				if err != nil {
					return err
				}
				item.Status = status
			}
			if flags.Changed("needs-help") {
				item.NeedsHelp, _ = flags.GetBool("needs-help")
			}

			if path, _ := flags.GetString("image"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if item.ImageBlobID, err = v.UploadImage(ctx, data); err != nil {
					return err
				}
			}
			if path, _ := flags.GetString("audio"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if item.AudioBlobID, err = v.UploadAudio(ctx, data); err != nil {
					return err
				}
			}

			doc, err := v.SaveItem(ctx, item)
			if err != nil {
				return err
			}
			fmt.Printf("id=%s, version=%d\n", item.ID, doc.Version)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes an item and its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			doc, err := v.DeleteItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %s, version=%d, items=%d\n", id, doc.Version, len(doc.Items))
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Prints an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := v.ReadInventory(cmd.Context())
			if err != nil {
				return err
			}
			item, ok := doc.Items[args[0]]
			if !ok {
				return fmt.Errorf("item %s does not exist", args[0])
			}
			output, _ := cmd.Flags().GetString("output")
			return util.Print(os.Stdout, output, item)
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := v.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSTATUS\tHELP\tIMAGE\tAUDIO\tCREATED")
			for _, item := range items {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%v\t%s\n",
					item.ID,
					item.Status,
					item.NeedsHelp,
					item.ImageBlobID != "",
					item.AudioBlobID != "",
					item.Created().Format(time.DateTime),
				)
			}
			return w.Flush()
		},
	}
)

func init() {
	saveCmd.Flags().String("id", "", util.WrapString("ID of an existing item to change (empty = create a new item)"))
	saveCmd.Flags().String("status", string(inventory.StatusDraft), util.WrapString("Status of the item (DRAFT, KEEP, GIFT, DONATE)"))
	saveCmd.Flags().Bool("needs-help", false, util.WrapString("Whether the item needs help from someone else"))
	saveCmd.Flags().String("image", "", util.WrapString("Path of an image to attach"))
	saveCmd.Flags().String("audio", "", util.WrapString("Path of an audio recording to attach"))

	getCmd.Flags().StringP("output", "o", "json", util.WrapString("Output format (json, yaml)"))
}
