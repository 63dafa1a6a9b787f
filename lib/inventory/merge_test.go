package inventory

import (
	"encoding/json"
	"testing"
)

func TestMerge(t *testing.T) {
	latest := Document{
		Version: 4,
		Items: map[string]Item{
			"A": {ID: "A", Status: StatusKeep, UpdatedAt: 1},
			"B": {ID: "B", Status: StatusDraft, UpdatedAt: 2},
		},
	}
	delta := map[string]Item{
		"B": {ID: "B", Status: StatusGift, UpdatedAt: 3},
		"C": {ID: "C", Status: StatusDonate, UpdatedAt: 4},
	}

	merged := Merge(latest, delta)

	if merged.Version != 5 {
		t.Errorf("expected version 5, got %d", merged.Version)
	}
	if len(merged.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(merged.Items))
	}
	if merged.Items["A"].UpdatedAt != 1 {
		t.Errorf("A must be kept from latest")
	}
	if merged.Items["B"].UpdatedAt != 3 || merged.Items["B"].Status != StatusGift {
		t.Errorf("B must be taken from delta, got %+v", merged.Items["B"])
	}
	if merged.Items["C"].UpdatedAt != 4 {
		t.Errorf("C must be added from delta")
	}

	// inputs are untouched
	if latest.Version != 4 || len(latest.Items) != 2 || latest.Items["B"].UpdatedAt != 2 {
		t.Errorf("Merge modified latest: %+v", latest)
	}
	if len(delta) != 2 {
		t.Errorf("Merge modified delta")
	}
}

func TestMergeEmpty(t *testing.T) {
	merged := Merge(NewDocument(), nil)
	if merged.Version != 2 || merged.Items == nil || len(merged.Items) != 0 {
		t.Errorf("unexpected result %+v", merged)
	}
}

func TestItemJSON(t *testing.T) {
	t.Run("FieldNames", func(t *testing.T) {
		b, err := json.Marshal(Item{ID: "i1", CreatedAt: 1, UpdatedAt: 2, ImageBlobID: "img", Status: StatusDraft})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		want := `{"id":"i1","createdAt":1,"updatedAt":2,"imageBlobId":"img","status":"DRAFT","needsHelp":false}`
		if string(b) != want {
			t.Errorf("expected %s, got %s", want, b)
		}
	})

	t.Run("LegacyFieldNames", func(t *testing.T) {
		var item Item
		legacy := `{"id":"i1","imageDriveId":"img","audioDriveId":null,"status":"KEEP","needsHelp":true}`
		if err := json.Unmarshal([]byte(legacy), &item); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if item.ImageBlobID != "img" || item.AudioBlobID != "" || item.Status != StatusKeep || !item.NeedsHelp {
			t.Errorf("unexpected item %+v", item)
		}
	})
}

func TestStatus(t *testing.T) {
	for _, s := range []string{"DRAFT", "keep", "Gift", "donate"} {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%s) failed: %v", s, err)
		}
	}
	if _, err := ParseStatus("SELL"); err == nil {
		t.Errorf("expected an error for SELL")
	}
}

func TestValidate(t *testing.T) {
	if err := (Item{Status: StatusDraft}).Validate(); err == nil {
		t.Errorf("item without id must be invalid")
	}
	if err := (Item{ID: "x"}).Validate(); err == nil {
		t.Errorf("item without status must be invalid")
	}
	if err := (Item{ID: "x", Status: StatusKeep}).Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
