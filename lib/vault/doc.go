// Package vault is the entry point for user interfaces. A Vault combines the
// client identity, the blob store, the advisory lock and the inventory store of
// one medium:
//
//	v, err := vault.Open(ctx, common.DefaultClientConfig())
//	if err != nil { ... }
//	defer v.Close()
//
//	item := v.NewItem()
//	item.ImageBlobID, err = v.UploadImage(ctx, photo)
//	doc, err := v.SaveItem(ctx, item)
//	if errors.Is(err, lockmgr.ErrLockBusy) {
//	    // another client is writing, try again later
//	}
//
// Media is uploaded before the item referencing it is saved. If the save fails, the
// blob stays behind without a reference; FindOrphans lists such blobs and Reconcile
// deletes them. Neither runs implicitly.
package vault
