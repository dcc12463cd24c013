package extractor

import (
	"errors"
	"sync/atomic"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// errClosed is returned by a duplicate Stop, per §4.3's handle contract
// ("duplicate stops return a closed-channel error").
var errClosed = errors.New("extractor: handle already stopped")

// Handle is the caller-facing control surface for a running Runtime
// (§4.3 "Handle contract"). It never touches the runtime's internal
// state directly; every operation is a message over a control channel the
// runtime's own goroutine drains.
type Handle struct {
	subscribeCh chan<- subscribeRequest
	stopCh      chan<- stopRequest
	stopped     atomic.Bool
}

// Subscribe registers a new subscriber and returns its message channel.
func (h *Handle) Subscribe() (<-chan models.BlockChanges, error) {
	reply := make(chan subscribeResponse, 1)
	h.subscribeCh <- subscribeRequest{reply: reply}
	resp := <-reply
	return resp.ch, nil
}

// Stop asks the runtime to shut down and waits for it to confirm. At-most-
// once from the caller's perspective: a second call returns errClosed
// rather than blocking forever on a runtime that already exited.
func (h *Handle) Stop() error {
	if !h.stopped.CompareAndSwap(false, true) {
		return errClosed
	}
	done := make(chan error, 1)
	h.stopCh <- stopRequest{done: done}
	return <-done
}
