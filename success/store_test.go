package success

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Init(filepath.Join(t.TempDir(), "success.db")); err != nil {
		t.Fatalf("Failed to initialize success store: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestSuccessStore(t *testing.T) {
	openTestStore(t)

	record := SuccessRecord{
		JobID:        "job-ok",
		Location:     "/files/tenant/job-ok.zip",
		EntryCount:   4,
		ArchiveBytes: 12345,
		Summary:      Summary{Kept: 1, Processed: 2, Skipped: 1, InputBytes: 50000, OutputBytes: 12000, BytesSaved: 38000},
	}
	if err := StoreSuccess(record, map[string]string{"folder": "tenant"}); err != nil {
		t.Fatalf("Failed to store success: %v", err)
	}

	got, err := GetSuccess("job-ok")
	if err != nil {
		t.Fatalf("Failed to get success: %v", err)
	}
	if got == nil {
		t.Fatal("Expected success record, got nil")
	}
	if got.Location != record.Location {
		t.Errorf("Expected location %s, got %s", record.Location, got.Location)
	}
	if got.Summary != record.Summary {
		t.Errorf("Expected summary %+v, got %+v", record.Summary, got.Summary)
	}
	if got.JobData != `{"folder":"tenant"}` {
		t.Errorf("Unexpected job data %q", got.JobData)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Error("Timestamp should default to now")
	}

	if missing, err := GetSuccess("nope"); err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing record, got %v, %v", missing, err)
	}

	if err := DeleteSuccess("job-ok"); err != nil {
		t.Fatalf("Failed to delete success: %v", err)
	}
	if got, _ := GetSuccess("job-ok"); got != nil {
		t.Error("Expected record to be deleted")
	}
}

func TestCleanupOldSuccessRecords(t *testing.T) {
	openTestStore(t)

	old := SuccessRecord{JobID: "old", Timestamp: time.Now().Add(-48 * time.Hour)}
	fresh := SuccessRecord{JobID: "fresh"}
	if err := StoreSuccess(old, nil); err != nil {
		t.Fatal(err)
	}
	if err := StoreSuccess(fresh, nil); err != nil {
		t.Fatal(err)
	}

	removed, err := CleanupOldRecords(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}

	records, err := ListSuccessRecords()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].JobID != "fresh" {
		t.Errorf("Expected only fresh record to remain, got %+v", records)
	}

	if err := CheckHealth(); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}
