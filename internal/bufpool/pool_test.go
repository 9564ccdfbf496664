package bufpool

import "testing"

func TestGetReturnsZeroedBufferOfRequestedSize(t *testing.T) {
	buf := Get(40)
	if len(buf) != 40 {
		t.Fatalf("len = %d, want 40", len(buf))
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected zeroed buffer, found %d", b)
		}
	}
	buf[0] = 0xff
	Put(buf)

	reused := Get(40)
	for _, b := range reused {
		if b != 0 {
			t.Fatalf("expected buffer to be re-zeroed on Get, found %d", b)
		}
	}
}

func TestGetAboveLargestBucketAllocatesDirectly(t *testing.T) {
	buf := Get(200 * 1024)
	if len(buf) != 200*1024 {
		t.Fatalf("len = %d, want %d", len(buf), 200*1024)
	}
}

func TestPutIgnoresNonStandardCapacity(t *testing.T) {
	buf := make([]byte, 40, 50) // not bucket-aligned
	Put(buf)                   // must not panic
}
