package ipmifru

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPushUpdateRecordFIFOOrder(t *testing.T) {
	fru := &FRU{}
	fru.mu.Lock()
	fru.pushUpdateRecord(0, 4)
	fru.pushUpdateRecord(8, 4)
	fru.pushUpdateRecord(16, 2)
	fru.mu.Unlock()

	got := fru.UpdateRecords()
	want := []UpdateRecord{{Offset: 0, Length: 4}, {Offset: 8, Length: 4}, {Offset: 16, Length: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("update records mismatch (-want +got):\n%s", diff)
	}
}

func TestPushUpdateRecordZeroLengthDropped(t *testing.T) {
	fru := &FRU{}
	fru.mu.Lock()
	fru.pushUpdateRecord(4, 0)
	fru.pushUpdateRecord(4, -1)
	fru.mu.Unlock()

	if got := fru.UpdateRecords(); len(got) != 0 {
		t.Fatalf("expected no records, got %v", got)
	}
}

// Scenario W3 — word-access normalization.
func TestWordAccessNormalizationAtInsertion(t *testing.T) {
	fru := &FRU{accessByWords: true}
	fru.MarkDirty(3, 5)

	got := fru.UpdateRecords()
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	want := UpdateRecord{Offset: 2, Length: 6}
	if got[0] != want {
		t.Fatalf("record = %+v, want %+v", got[0], want)
	}
}

func TestWordAccessNormalizationAlreadyEven(t *testing.T) {
	fru := &FRU{accessByWords: true}
	fru.MarkDirty(4, 2)

	got := fru.UpdateRecords()
	want := UpdateRecord{Offset: 4, Length: 2}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("record = %+v, want %+v", got, want)
	}
}

func TestPopUpdateRecordDrainsInOrder(t *testing.T) {
	fru := &FRU{}
	fru.mu.Lock()
	fru.pushUpdateRecord(0, 2)
	fru.pushUpdateRecord(4, 2)
	first := fru.popUpdateRecord()
	second := fru.popUpdateRecord()
	third := fru.popUpdateRecord()
	fru.mu.Unlock()

	if first.offset != 0 || second.offset != 4 {
		t.Fatalf("unexpected pop order: %+v, %+v", first, second)
	}
	if third != nil {
		t.Fatalf("expected nil on empty queue, got %+v", third)
	}
}
