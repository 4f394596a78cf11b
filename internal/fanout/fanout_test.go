package fanout

import (
	"testing"
	"time"

	"eurotherm-supervisor/internal/model"
)

func record(name string, i int) model.ProcessValues {
	return model.ProcessValues{DeviceName: name, Timestamp: time.Unix(int64(i), 0)}
}

func TestSubscribeReceivesOnlyFutureRecords(t *testing.T) {
	f := New()
	f.Publish(record("d1", 0)) // before any subscriber: must not be replayed

	stream, unsub, ok := f.Subscribe()
	if !ok {
		t.Fatal("Subscribe failed on a fresh FanOut")
	}
	defer unsub()

	f.Publish(record("d1", 1))

	select {
	case pv := <-stream:
		if pv.Timestamp.Unix() != 1 {
			t.Fatalf("got record %v, want timestamp 1", pv)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published record")
	}

	select {
	case pv := <-stream:
		t.Fatalf("unexpected extra record %v", pv)
	default:
	}
}

func TestPublishNeverBlocksOnFullMailbox(t *testing.T) {
	f := New()
	stream, unsub, ok := f.Subscribe()
	if !ok {
		t.Fatal("Subscribe failed")
	}
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < MailboxCapacity*4; i++ {
			f.Publish(record("d1", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked despite nobody draining the mailbox")
	}

	// Drain; the oldest entries should have been dropped, so the last
	// record we see should be the most recently published one.
	var last model.ProcessValues
	for {
		select {
		case pv, ok := <-stream:
			if !ok {
				goto done
			}
			last = pv
		default:
			goto done
		}
	}
done:
	if last.Timestamp.Unix() != int64(MailboxCapacity*4-1) {
		t.Fatalf("last drained record has timestamp %v, want %v", last.Timestamp.Unix(), MailboxCapacity*4-1)
	}
}

func TestUnsubscribeClosesMailbox(t *testing.T) {
	f := New()
	stream, unsub, ok := f.Subscribe()
	if !ok {
		t.Fatal("Subscribe failed")
	}
	unsub()

	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("mailbox produced a value after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("mailbox never closed after unsubscribe")
	}
}

func TestCompleteRejectsNewSubscribersAndClosesExisting(t *testing.T) {
	f := New()
	stream, _, ok := f.Subscribe()
	if !ok {
		t.Fatal("Subscribe failed before Complete")
	}

	f.Complete()

	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("mailbox produced a value after Complete")
		}
	case <-time.After(time.Second):
		t.Fatal("mailbox never closed on Complete")
	}

	if _, _, ok := f.Subscribe(); ok {
		t.Fatal("Subscribe succeeded after Complete")
	}
}
