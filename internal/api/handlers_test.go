package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// fakeStore implements store.VersionedStore, exercising only the three
// read paths the Query Surface calls. Everything else panics if reached.
type fakeStore struct {
	contracts []models.Contract
	tokens    []models.Token
	components []models.ProtocolComponent

	gotVersion models.Version
}

func (f *fakeStore) GetContracts(ctx context.Context, chain models.Chain, addresses []models.Address, version models.Version, includeSlots bool) ([]models.Contract, error) {
	f.gotVersion = version
	return f.contracts, nil
}

func (f *fakeStore) GetTokens(ctx context.Context, chain models.Chain, addresses []models.Address) ([]models.Token, error) {
	return f.tokens, nil
}

func (f *fakeStore) GetProtocolComponents(ctx context.Context, chain models.Chain, system *models.ProtocolSystem, ids []string, blockRange *store.BlockRange) ([]models.ProtocolComponent, error) {
	return f.components, nil
}

func (f *fakeStore) UpsertBlock(ctx context.Context, b models.Block) error { panic("unused") }
func (f *fakeStore) GetBlock(ctx context.Context, id models.BlockIdentifier) (models.Block, error) {
	panic("unused")
}
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
func (f *fakeStore) InsertContract(ctx context.Context, c models.Account) error { panic("unused") }
func (f *fakeStore) UpdateContracts(ctx context.Context, chain models.Chain, deltas []models.TxAccountDelta) error {
	panic("unused")
}
func (f *fakeStore) DeleteContract(ctx context.Context, id models.AccountID, atTx models.Hash) error {
	panic("unused")
}
func (f *fakeStore) GetAccountsDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.AccountDelta, error) {
	panic("unused")
}
func (f *fakeStore) GetProtocolStates(ctx context.Context, chain models.Chain, version models.Version, system *models.ProtocolSystem, ids []models.ComponentID) ([]models.ProtocolState, error) {
	panic("unused")
}
func (f *fakeStore) UpdateProtocolStates(ctx context.Context, chain models.Chain, deltas []models.TxProtocolStateDelta) error {
	panic("unused")
}
func (f *fakeStore) GetProtocolStatesDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.ProtocolStateDelta, error) {
	panic("unused")
}
func (f *fakeStore) AddProtocolComponents(ctx context.Context, components []models.ProtocolComponent) error {
	panic("unused")
}
func (f *fakeStore) DeleteProtocolComponents(ctx context.Context, ids []models.ComponentID, ts models.Version) error {
	panic("unused")
}
func (f *fakeStore) AddTokens(ctx context.Context, tokens []models.Token) error { panic("unused") }
func (f *fakeStore) AddComponentBalances(ctx context.Context, balances []models.ComponentBalanceRow) error {
	panic("unused")
}
func (f *fakeStore) GetBalanceDeltas(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.BalanceDelta, error) {
	panic("unused")
}
func (f *fakeStore) GetState(ctx context.Context, name string, chain models.Chain) (models.ExtractionState, error) {
	panic("unused")
}
func (f *fakeStore) SaveState(ctx context.Context, state models.ExtractionState) error {
	panic("unused")
}
func (f *fakeStore) ApplyBlockChanges(ctx context.Context, chain models.Chain, changes models.BlockChanges, state models.ExtractionState) error {
	panic("unused")
}
func (f *fakeStore) ApplyRevert(ctx context.Context, to models.BlockIdentifier, state models.ExtractionState) error {
	panic("unused")
}

var _ store.VersionedStore = (*fakeStore)(nil)

func newTestRouter(fs *fakeStore) http.Handler {
	log := logrus.New()
	log.SetOutput(new(bytes.Buffer))
	return NewRouter(NewServer(fs), log)
}

func TestContractStateWithBlockHash(t *testing.T) {
	hash := common.HexToHash("0x01")
	fs := &fakeStore{contracts: []models.Contract{{Account: models.Account{ID: models.AccountID{Address: common.HexToAddress("0x02")}}}}}
	router := newTestRouter(fs)

	addr := common.HexToAddress("0x02")
	body := `{"contract_ids":["` + addr.Hex() + `"],"version":{"block":{"hash":"` + hash.Hex() + `"}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ethereum/contract_state", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if fs.gotVersion.Block == nil || fs.gotVersion.Block.Hash != hash {
		t.Errorf("gotVersion = %+v, want block hash %s", fs.gotVersion, hash)
	}
	var got []models.Contract
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 contract, got %d", len(got))
	}
}

func TestContractStateBlockHashWinsOverNumber(t *testing.T) {
	hash := common.HexToHash("0xaa")
	fs := &fakeStore{}
	router := newTestRouter(fs)

	body := `{"version":{"block":{"hash":"` + hash.Hex() + `","number":5}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ethereum/contract_state", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if fs.gotVersion.Block == nil || fs.gotVersion.Block.Kind != models.BlockIDHash {
		t.Errorf("gotVersion.Block = %+v, want hash-kind block id", fs.gotVersion.Block)
	}
}

func TestContractStateMissingVersionFails400(t *testing.T) {
	fs := &fakeStore{}
	router := newTestRouter(fs)

	// A version object naming neither a block nor a timestamp; an absent
	// version means latest and is accepted.
	req := httptest.NewRequest(http.MethodPost, "/v1/ethereum/contract_state", bytes.NewBufferString(`{"version":{}}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestTokensEmptyBody(t *testing.T) {
	fs := &fakeStore{tokens: []models.Token{{Symbol: "WETH", Decimals: 18}}}
	router := newTestRouter(fs)

	req := httptest.NewRequest(http.MethodPost, "/v1/ethereum/tokens", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got []models.Token
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "WETH" {
		t.Fatalf("unexpected tokens response: %+v", got)
	}
}

func TestProtocolComponentsWithBlockRange(t *testing.T) {
	fs := &fakeStore{components: []models.ProtocolComponent{{ID: models.ComponentID{ExternalID: "pool-1"}}}}
	router := newTestRouter(fs)

	req := httptest.NewRequest(http.MethodPost, "/v1/ethereum/protocol_components", bytes.NewBufferString(`{"start_block":1,"end_block":10}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestContractStateMalformedJSON400(t *testing.T) {
	fs := &fakeStore{}
	router := newTestRouter(fs)

	req := httptest.NewRequest(http.MethodPost, "/v1/ethereum/contract_state", bytes.NewBufferString(`{`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
