package extractor

import (
	"context"
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/fanout"
	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
	"github.com/synnergy-labs/chain-indexer/internal/substreams"
)

// MetricsRecorder is the subset of telemetry.Metrics a Runtime reports to.
// Optional: a nil recorder (the default) means Run skips every call.
type MetricsRecorder interface {
	ObserveApply(extractor, chain string, blockNumber uint64, seconds float64)
	ObserveRevert(extractor, chain string, blockNumber uint64)
	SetSubscribers(extractor, chain string, n int)
}

// Runtime drives one extractor's state machine (§4.3): load cursor, stream
// envelopes, decode and apply them atomically, emit to subscribers. One
// Runtime exists per (extractor name, chain); Handle is the only thing
// callers outside this package touch.
type Runtime struct {
	identity models.ExtractorIdentity
	store    store.VersionedStore
	client   substreams.Client
	hub      *fanout.Hub
	decoder  Decoder
	metrics  MetricsRecorder

	subscribeCh chan subscribeRequest
	stopCh      chan stopRequest

	state State
}

// New constructs a Runtime. decoder must match the upstream module's output
// type for identity's whole lifetime (§4.3 "Each extractor is bound to
// exactly one decoder").
func New(identity models.ExtractorIdentity, s store.VersionedStore, client substreams.Client, decoder Decoder) *Runtime {
	return &Runtime{
		identity:    identity,
		store:       s,
		client:      client,
		hub:         fanout.New(),
		decoder:     decoder,
		subscribeCh: make(chan subscribeRequest),
		stopCh:      make(chan stopRequest),
		state:       Initializing,
	}
}

// Handle returns the caller-facing control surface for this runtime. Safe
// to call before or after Run starts; the channels themselves are what
// carry every request, not any field read under a lock.
func (r *Runtime) Handle() *Handle {
	return &Handle{subscribeCh: r.subscribeCh, stopCh: r.stopCh}
}

// WithMetrics attaches a MetricsRecorder; returns r for chaining at
// construction time.
func (r *Runtime) WithMetrics(m MetricsRecorder) *Runtime {
	r.metrics = m
	return r
}

// Run executes the state machine until ctx is canceled or a Stop request is
// served. It loads the persisted cursor (treating NotFound as a fresh
// start at the beginning of the stream), opens the upstream stream from
// that cursor, and then services control requests and stream envelopes
// until told to stop.
func (r *Runtime) Run(ctx context.Context) error {
	cursor, err := r.loadCursor(ctx)
	if err != nil {
		r.state = Terminated
		return err
	}

	envelopes, streamErrs := r.client.Stream(ctx, cursor)
	r.state = Running

	for {
		select {
		case <-ctx.Done():
			r.state = Terminated
			r.hub.CloseAll()
			return ctx.Err()

		case req := <-r.subscribeCh:
			id, ch := r.hub.Subscribe()
			req.reply <- subscribeResponse{id: id, ch: ch}
			r.reportSubscribers()

		case req := <-r.stopCh:
			r.state = Stopping
			r.hub.CloseAll()
			r.state = Terminated
			req.done <- nil
			return nil

		case err := <-streamErrs:
			r.state = Terminated
			r.hub.CloseAll()
			return err

		case env, ok := <-envelopes:
			if !ok {
				r.state = Terminated
				r.hub.CloseAll()
				return nil
			}
			if err := r.handleEnvelope(ctx, env); err != nil {
				r.state = Terminated
				r.hub.CloseAll()
				return err
			}
			r.state = Running
		}
	}
}

func (r *Runtime) reportSubscribers() {
	if r.metrics != nil {
		r.metrics.SetSubscribers(r.identity.Name, string(r.identity.Chain), r.hub.Len())
	}
}

func (r *Runtime) loadCursor(ctx context.Context) (string, error) {
	state, err := r.store.GetState(ctx, r.identity.Name, r.identity.Chain)
	if err != nil {
		if store.KindOf(err) == store.KindNotFound {
			return "", nil
		}
		return "", err
	}
	return state.Cursor, nil
}

func (r *Runtime) handleEnvelope(ctx context.Context, env substreams.Envelope) error {
	switch env.Kind {
	case substreams.KindProgress:
		return nil
	case substreams.KindNew:
		return r.applyNew(ctx, env.New)
	case substreams.KindUndo:
		return r.applyUndo(ctx, env.Undo)
	default:
		return nil
	}
}

func (r *Runtime) applyNew(ctx context.Context, msg substreams.NewMessage) error {
	r.state = Applying

	changes, err := r.decoder(msg.Output.Value)
	if err != nil {
		return err
	}
	changes.Block.Number = msg.Clock.Number
	changes.Block.Chain = r.identity.Chain
	if len(msg.Clock.ID) == len(changes.Block.Hash) {
		changes.Block.Hash = models.Hash(msg.Clock.ID)
	}
	changes.Block.Ts = time.Unix(msg.Clock.Timestamp, 0).UTC()

	state := models.ExtractionState{
		ExtractorName: r.identity.Name,
		Chain:         r.identity.Chain,
		Cursor:        msg.Cursor,
	}

	if changes.Empty() {
		if err := r.store.SaveState(ctx, state); err != nil {
			return err
		}
		return nil
	}

	start := time.Now()
	if err := r.store.ApplyBlockChanges(ctx, r.identity.Chain, changes, state); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.ObserveApply(r.identity.Name, string(r.identity.Chain), changes.Block.Number, time.Since(start).Seconds())
	}
	r.hub.Emit(changes)
	return nil
}

func (r *Runtime) applyUndo(ctx context.Context, msg substreams.UndoMessage) error {
	r.state = Applying

	head, err := r.store.GetBlock(ctx, models.LatestBlock(r.identity.Chain))
	if err != nil {
		return err
	}
	var lastValidHash models.Hash
	if len(msg.LastValidBlock.ID) == len(lastValidHash) {
		lastValidHash = models.Hash(msg.LastValidBlock.ID)
	}
	target, err := r.store.GetBlock(ctx, models.BlockByHash(lastValidHash))
	if err != nil {
		// The revert target must already be known to the store; if it
		// isn't, the stream and the store have diverged beyond repair.
		return store.DecodeErrorf("extractor: undo target block unknown: %v", err)
	}

	changes, err := buildRevertChanges(ctx, r.store, r.identity.Chain, head, target)
	if err != nil {
		return err
	}

	state := models.ExtractionState{
		ExtractorName: r.identity.Name,
		Chain:         r.identity.Chain,
		Cursor:        msg.LastValidCursor,
	}

	if err := r.store.ApplyRevert(ctx, models.BlockByHash(target.Hash), state); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.ObserveRevert(r.identity.Name, string(r.identity.Chain), target.Number)
	}
	r.hub.Emit(changes)
	return nil
}
