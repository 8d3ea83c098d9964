package ernode

import "testing"

func TestWriteQueueSingleFlight(t *testing.T) {
	q := newWriteQueue()
	a := newSentinelBuf(3)
	copy(a.payload(), []byte("abc"))

	if !q.submit(a) {
		t.Fatalf("first submit on an idle queue should start a flight")
	}
	bufs := q.beginFlight()
	if len(bufs) != 1 || string(bufs[0]) != "abc" {
		t.Fatalf("unexpected flight contents: %v", bufs)
	}
	if q.completeFlight() {
		t.Fatalf("no submissions arrived during the flight, should not need another")
	}
}

func TestWriteQueueCoalescesDuringFlight(t *testing.T) {
	q := newWriteQueue()
	a := newSentinelBuf(1)
	a.payload()[0] = 'a'
	if !q.submit(a) {
		t.Fatalf("expected first submit to start a flight")
	}

	flight1 := q.beginFlight()
	if len(flight1) != 1 {
		t.Fatalf("first flight should only contain the first buffer, got %d", len(flight1))
	}

	b := newSentinelBuf(1)
	b.payload()[0] = 'b'
	if q.submit(b) {
		t.Fatalf("submit during an active flight must not start a second one")
	}
	if !q.completeFlight() {
		t.Fatalf("a submission arrived mid-flight, another flight should be required")
	}

	flight2 := q.beginFlight()
	if len(flight2) != 1 || flight2[0][0] != 'b' {
		t.Fatalf("second flight should carry the coalesced buffer, got %v", flight2)
	}
	if q.completeFlight() {
		t.Fatalf("queue should be idle after draining both flights")
	}
}

func TestSentinelBufDoubleReleasePanics(t *testing.T) {
	b := newSentinelBuf(4)
	b.release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double release")
		}
	}()
	b.release()
}

func TestSentinelBufCorruptionPanics(t *testing.T) {
	b := newSentinelBuf(4)
	b.full[0] = 0
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on corrupted sentinel")
		}
	}()
	b.release()
}

func TestWriteQueueDrainReleasesAndClosesQueue(t *testing.T) {
	q := newWriteQueue()
	a := newSentinelBuf(1)
	q.submit(a)
	q.drain()
	if q.submit(newSentinelBuf(1)) {
		t.Fatalf("submit after drain should not start a flight on a closed queue")
	}
}
