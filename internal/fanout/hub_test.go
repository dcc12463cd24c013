package fanout

import (
	"testing"
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

func TestEmitDeliversToEverySubscriber(t *testing.T) {
	h := New()
	_, a := h.Subscribe()
	_, b := h.Subscribe()

	msg := models.BlockChanges{Block: models.Block{Number: 1}}
	done := make(chan struct{})
	go func() { h.Emit(msg); close(done) }()

	select {
	case got := <-a:
		if got.Block.Number != 1 {
			t.Errorf("subscriber a got block %d, want 1", got.Block.Number)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber a never received the message")
	}
	select {
	case got := <-b:
		if got.Block.Number != 1 {
			t.Errorf("subscriber b got block %d, want 1", got.Block.Number)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber b never received the message")
	}
	<-done
}

func TestEmitBlocksOnSlowSubscriberUntilDrained(t *testing.T) {
	h := New()
	id, ch := h.Subscribe()
	_ = id

	h.Emit(models.BlockChanges{Block: models.Block{Number: 1}})

	emitted := make(chan struct{})
	go func() {
		h.Emit(models.BlockChanges{Block: models.Block{Number: 2}})
		close(emitted)
	}()

	select {
	case <-emitted:
		t.Fatal("second Emit returned before the first message was drained")
	case <-time.After(50 * time.Millisecond):
	}

	<-ch // drain block 1, unblocking the pending send of block 2
	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("second Emit never unblocked after draining")
	}
}

func TestUnsubscribeUnblocksPendingEmit(t *testing.T) {
	h := New()
	id, _ := h.Subscribe()

	h.Emit(models.BlockChanges{Block: models.Block{Number: 1}}) // fills the capacity-1 channel

	emitted := make(chan struct{})
	go func() {
		h.Emit(models.BlockChanges{Block: models.Block{Number: 2}})
		close(emitted)
	}()

	time.Sleep(20 * time.Millisecond)
	h.Unsubscribe(id)

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("Emit never unblocked after Unsubscribe")
	}
	if h.Len() != 0 {
		t.Errorf("subscriber count = %d, want 0 after Unsubscribe", h.Len())
	}
}
