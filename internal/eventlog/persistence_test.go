package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEventStore_Persistence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "eventlog-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store1 := NewEventStore()
	store1.Append("L1", []TicketEvent{
		{TicketID: 1, Team: "L1", EventType: Allocated, Timestamp: base.Add(time.Minute).UnixMicro(), Seq: 2},
		{TicketID: 1, Team: "L1", EventType: Raised, Timestamp: base.UnixMicro(), Seq: 1},
	})
	store1.Append("L2", []TicketEvent{
		{TicketID: 9, Team: "L2", EventType: Raised, Timestamp: base.UnixMicro(), Seq: 3},
	})

	path := filepath.Join(tmpDir, "events.jsonl")
	if err := store1.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should be renamed away")
	}

	store2 := NewEventStore()
	if err := store2.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if store2.Count("L1") != 2 || store2.Count("L2") != 1 {
		t.Fatalf("unexpected counts after load: %d/%d", store2.Count("L1"), store2.Count("L2"))
	}
	if ev := store2.Events("L1"); ev[0].EventType != Raised {
		t.Errorf("events should be chronological, got %s first", ev[0].EventType)
	}

	// Loading twice must not duplicate
	if err := store2.Load(path); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if store2.Count("L1") != 2 {
		t.Errorf("duplicates appended: %d", store2.Count("L1"))
	}
}

func TestEventStore_LoadMissingFile(t *testing.T) {
	s := NewEventStore()
	if err := s.Load(filepath.Join(t.TempDir(), "absent.jsonl")); err != nil {
		t.Errorf("missing file should not be an error: %v", err)
	}
}

func TestEventStore_TiesKeepEmissionOrder(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC).UnixMicro()
	s := NewEventStore()
	s.Append("L1", []TicketEvent{
		{TicketID: 1, EventType: Raised, Timestamp: ts, Seq: 1},
		{TicketID: 1, EventType: Allocated, Timestamp: ts, Seq: 2},
	})
	ev := s.Events("L1")
	if ev[0].EventType != Raised || ev[1].EventType != Allocated {
		t.Errorf("tie broken by type instead of emission: %v", ev)
	}
	if got := s.GetEventsForTicket("L1", 1); len(got) != 2 {
		t.Errorf("expected 2 events for ticket 1, got %d", len(got))
	}
}
