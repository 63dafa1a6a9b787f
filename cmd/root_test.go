package cmd

import (
	"io"
	"testing"

	"github.com/ValentinKolb/memento/lib/store/bstore"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	RootCmd.SetArgs(args)
	RootCmd.SetOut(io.Discard)
	RootCmd.SetErr(io.Discard)
	return RootCmd.Execute()
}

func TestFailedCommandClosesVault(t *testing.T) {
	dir := t.TempDir()

	if err := execute(t, "item", "get", "missing", "--store", "badger", "--data-dir", dir); err == nil {
		t.Fatal("expected an error for a missing item")
	}

	// badger holds a directory lock while open
	s, err := bstore.NewBadgerStore(bstore.Options{Dir: dir})
	if err != nil {
		t.Fatalf("medium still in use after the failed command: %v", err)
	}
	_ = s.Close()

	if err := execute(t, "item", "list", "--store", "badger", "--data-dir", dir); err != nil {
		t.Errorf("command after the failed one failed: %v", err)
	}
}
