package extractor

import (
	"github.com/google/uuid"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// subscribeRequest is sent over the runtime's control channel; the
// runtime answers synchronously before resuming its main loop, so
// Subscribe never observes a half-registered subscriber.
type subscribeRequest struct {
	reply chan<- subscribeResponse
}

type subscribeResponse struct {
	id uuid.UUID
	ch <-chan models.BlockChanges
}

// stopRequest asks the runtime to leave [Running]/[Applying] for
// [Stopping] then [Terminated]. done receives nil once the loop has
// exited and every subscriber has been closed.
type stopRequest struct {
	done chan<- error
}
