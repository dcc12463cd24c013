package extractor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
	"github.com/synnergy-labs/chain-indexer/internal/substreams"
)

// fakeClient is a scripted substreams.Client: it replays a fixed slice of
// envelopes then closes the channel, optionally ending with an error. When
// start is non-nil, replay waits until it is closed.
type fakeClient struct {
	envelopes []substreams.Envelope
	endErr    error
	start     chan struct{}
}

func (f *fakeClient) Stream(ctx context.Context, cursor string) (<-chan substreams.Envelope, <-chan error) {
	out := make(chan substreams.Envelope)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		if f.start != nil {
			select {
			case <-f.start:
			case <-ctx.Done():
				return
			}
		}
		for _, env := range f.envelopes {
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
		if f.endErr != nil {
			errs <- f.endErr
			return
		}
		// No more envelopes and nothing fatal: stay open, like a real
		// subscription that has caught up to the chain head, until the
		// caller cancels.
		<-ctx.Done()
	}()
	return out, errs
}

// fakeStore implements store.VersionedStore with just enough behavior for
// the runtime tests; methods outside the extractor's write path are unused
// and panic if called, so an unexpected dependency shows up immediately.
type fakeStore struct {
	mu           sync.Mutex
	state        models.ExtractionState
	stateErr     error
	block        models.Block
	blockErr     error
	applyCalls   []models.BlockChanges
	applyErr     error
	revertCalls  []models.BlockIdentifier
	revertErr    error
	savedCursors []string
}

func (f *fakeStore) GetState(ctx context.Context, name string, chain models.Chain) (models.ExtractionState, error) {
	if f.stateErr != nil {
		return models.ExtractionState{}, f.stateErr
	}
	return f.state, nil
}

func (f *fakeStore) SaveState(ctx context.Context, state models.ExtractionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedCursors = append(f.savedCursors, state.Cursor)
	return nil
}

func (f *fakeStore) ApplyBlockChanges(ctx context.Context, chain models.Chain, changes models.BlockChanges, state models.ExtractionState) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls = append(f.applyCalls, changes)
	f.savedCursors = append(f.savedCursors, state.Cursor)
	return nil
}

func (f *fakeStore) ApplyRevert(ctx context.Context, to models.BlockIdentifier, state models.ExtractionState) error {
	if f.revertErr != nil {
		return f.revertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revertCalls = append(f.revertCalls, to)
	f.savedCursors = append(f.savedCursors, state.Cursor)
	return nil
}

func (f *fakeStore) snapshot() (applyCalls int, revertCalls int, savedCursors []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applyCalls), len(f.revertCalls), append([]string(nil), f.savedCursors...)
}

func (f *fakeStore) GetBlock(ctx context.Context, id models.BlockIdentifier) (models.Block, error) {
	if f.blockErr != nil {
		return models.Block{}, f.blockErr
	}
	return f.block, nil
}

func (f *fakeStore) GetAccountsDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.AccountDelta, error) {
	return nil, nil
}
func (f *fakeStore) GetProtocolStatesDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.ProtocolStateDelta, error) {
	return nil, nil
}
func (f *fakeStore) GetBalanceDeltas(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.BalanceDelta, error) {
	return nil, nil
}

func (f *fakeStore) UpsertBlock(ctx context.Context, b models.Block) error { panic("unused") }
func (f *fakeStore) UpsertTx(ctx context.Context, t models.Transaction) error { panic("unused") }
func (f *fakeStore) GetTx(ctx context.Context, hash models.Hash) (models.Transaction, error) {
	panic("unused")
}
func (f *fakeStore) RevertState(ctx context.Context, to models.BlockIdentifier) error {
	panic("unused")
}
func (f *fakeStore) GetContract(ctx context.Context, id models.AccountID, version models.Version, includeSlots bool) (models.Contract, error) {
	panic("unused")
}
func (f *fakeStore) GetContracts(ctx context.Context, chain models.Chain, addresses []models.Address, version models.Version, includeSlots bool) ([]models.Contract, error) {
	panic("unused")
}
func (f *fakeStore) InsertContract(ctx context.Context, c models.Account) error { panic("unused") }
func (f *fakeStore) UpdateContracts(ctx context.Context, chain models.Chain, deltas []models.TxAccountDelta) error {
	panic("unused")
}
func (f *fakeStore) DeleteContract(ctx context.Context, id models.AccountID, atTx models.Hash) error {
	panic("unused")
}
func (f *fakeStore) GetProtocolStates(ctx context.Context, chain models.Chain, version models.Version, system *models.ProtocolSystem, ids []models.ComponentID) ([]models.ProtocolState, error) {
	panic("unused")
}
func (f *fakeStore) UpdateProtocolStates(ctx context.Context, chain models.Chain, deltas []models.TxProtocolStateDelta) error {
	panic("unused")
}
func (f *fakeStore) GetProtocolComponents(ctx context.Context, chain models.Chain, system *models.ProtocolSystem, ids []string, blockRange *store.BlockRange) ([]models.ProtocolComponent, error) {
	panic("unused")
}
func (f *fakeStore) AddProtocolComponents(ctx context.Context, components []models.ProtocolComponent) error {
	panic("unused")
}
func (f *fakeStore) DeleteProtocolComponents(ctx context.Context, ids []models.ComponentID, ts models.Version) error {
	panic("unused")
}
func (f *fakeStore) AddTokens(ctx context.Context, tokens []models.Token) error { panic("unused") }
func (f *fakeStore) GetTokens(ctx context.Context, chain models.Chain, addresses []models.Address) ([]models.Token, error) {
	panic("unused")
}
func (f *fakeStore) AddComponentBalances(ctx context.Context, balances []models.ComponentBalanceRow) error {
	panic("unused")
}

var _ store.VersionedStore = (*fakeStore)(nil)

func staticDecoder(changes models.BlockChanges) Decoder {
	return func(payload []byte) (models.BlockChanges, error) {
		return changes, nil
	}
}

func TestRunAppliesNewBlockAndEmits(t *testing.T) {
	s := &fakeStore{stateErr: store.NotFound("extraction_state", "feed@ethereum")}
	changes := models.BlockChanges{
		AccountUpdates: []models.TxAccountDelta{{Update: models.AccountUpdate{}}},
	}
	client := &fakeClient{start: make(chan struct{}), envelopes: []substreams.Envelope{
		{Kind: substreams.KindNew, New: substreams.NewMessage{Cursor: "cursor-1", Clock: substreams.Clock{Number: 42}}},
	}}

	rt := New(models.ExtractorIdentity{Name: "feed", Chain: models.ChainEthereum}, s, client, staticDecoder(changes))
	handle := rt.Handle()

	// Subscribe is served by the Run loop, so Run starts first; the stream
	// is held back until the subscriber is registered.
	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	sub, err := handle.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	close(client.start)

	select {
	case got := <-sub:
		if len(got.AccountUpdates) != 1 {
			t.Fatalf("expected 1 account update, got %d", len(got.AccountUpdates))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for emitted changes")
	}

	handle.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	applyCalls, _, savedCursors := s.snapshot()
	if applyCalls != 1 {
		t.Fatalf("expected 1 ApplyBlockChanges call, got %d", applyCalls)
	}
	if len(savedCursors) != 1 || savedCursors[0] != "cursor-1" {
		t.Fatalf("expected cursor-1 saved, got %v", savedCursors)
	}
}

func TestRunEmptyBlockOnlySavesCursor(t *testing.T) {
	s := &fakeStore{stateErr: store.NotFound("extraction_state", "feed@ethereum")}
	client := &fakeClient{envelopes: []substreams.Envelope{
		{Kind: substreams.KindNew, New: substreams.NewMessage{Cursor: "cursor-1"}},
	}}

	rt := New(models.ExtractorIdentity{Name: "feed", Chain: models.ChainEthereum}, s, client, staticDecoder(models.BlockChanges{}))
	handle := rt.Handle()

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	deadline := time.After(time.Second)
	for {
		if _, _, saved := s.snapshot(); len(saved) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for cursor save")
		case <-time.After(10 * time.Millisecond):
		}
	}

	handle.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	applyCalls, _, savedCursors := s.snapshot()
	if applyCalls != 0 {
		t.Fatalf("expected no ApplyBlockChanges call for an empty block, got %d", applyCalls)
	}
	if len(savedCursors) != 1 || savedCursors[0] != "cursor-1" {
		t.Fatalf("expected cursor-1 saved via SaveState, got %v", savedCursors)
	}
}

func TestRunUndoAppliesRevert(t *testing.T) {
	s := &fakeStore{
		stateErr: store.NotFound("extraction_state", "feed@ethereum"),
		block:    models.Block{Chain: models.ChainEthereum, Number: 10},
	}
	client := &fakeClient{envelopes: []substreams.Envelope{
		{Kind: substreams.KindUndo, Undo: substreams.UndoMessage{
			LastValidBlock:  substreams.Clock{ID: make([]byte, 32), Number: 9},
			LastValidCursor: "cursor-undo",
		}},
	}}

	rt := New(models.ExtractorIdentity{Name: "feed", Chain: models.ChainEthereum}, s, client, staticDecoder(models.BlockChanges{}))
	handle := rt.Handle()

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	deadline := time.After(time.Second)
	for {
		if _, revertCalls, _ := s.snapshot(); revertCalls > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for revert")
		case <-time.After(10 * time.Millisecond):
		}
	}

	handle.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, revertCalls, savedCursors := s.snapshot()
	if revertCalls != 1 {
		t.Fatalf("expected 1 ApplyRevert call, got %d", revertCalls)
	}
	if savedCursors[len(savedCursors)-1] != "cursor-undo" {
		t.Fatalf("expected cursor-undo saved, got %v", savedCursors)
	}
}

func TestHandleStopIsAtMostOnce(t *testing.T) {
	s := &fakeStore{stateErr: store.NotFound("extraction_state", "feed@ethereum")}
	client := &fakeClient{}
	rt := New(models.ExtractorIdentity{Name: "feed", Chain: models.ChainEthereum}, s, client, staticDecoder(models.BlockChanges{}))
	handle := rt.Handle()

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	if err := handle.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := handle.Stop(); err != errClosed {
		t.Fatalf("expected errClosed on second Stop, got %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
