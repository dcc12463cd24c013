package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// Server wires the Query Surface (§4.5) to a backing VersionedStore.
type Server struct {
	store store.VersionedStore
}

func NewServer(s store.VersionedStore) *Server {
	return &Server{store: s}
}

type contractStateRequest struct {
	ContractIDs  []models.Address `json:"contract_ids"`
	Version      *versionParam    `json:"version"`
	IncludeSlots bool             `json:"include_slots"`

	// Accepted but unenforced (§4.5): reserved for a future filtering pass.
	TVLThreshold  *float64 `json:"tvl_threshold"`
	InertiaMinAge *string  `json:"inertia_min_age"`
}

func (s *Server) ContractState(w http.ResponseWriter, r *http.Request) {
	chain := models.Chain(chi.URLParam(r, "chain"))

	var req contractStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, newParseError(err.Error()))
		return
	}

	version, err := parseVersion(chain, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}

	contracts, err := s.store.GetContracts(r.Context(), chain, req.ContractIDs, version, req.IncludeSlots)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

type tokensRequest struct {
	Addresses []models.Address `json:"addresses"`
}

func (s *Server) Tokens(w http.ResponseWriter, r *http.Request) {
	chain := models.Chain(chi.URLParam(r, "chain"))

	var req tokensRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, newParseError(err.Error()))
			return
		}
	}

	tokens, err := s.store.GetTokens(r.Context(), chain, req.Addresses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

type protocolComponentsRequest struct {
	ProtocolSystem *models.ProtocolSystem `json:"protocol_system"`
	ComponentIDs   []string               `json:"component_ids"`
	StartBlock     *uint64                `json:"start_block"`
	EndBlock       *uint64                `json:"end_block"`
}

func (s *Server) ProtocolComponents(w http.ResponseWriter, r *http.Request) {
	chain := models.Chain(chi.URLParam(r, "chain"))

	var req protocolComponentsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, newParseError(err.Error()))
			return
		}
	}

	var blockRange *store.BlockRange
	if req.StartBlock != nil && req.EndBlock != nil {
		blockRange = &store.BlockRange{Start: *req.StartBlock, End: *req.EndBlock}
	}

	components, err := s.store.GetProtocolComponents(r.Context(), chain, req.ProtocolSystem, req.ComponentIDs, blockRange)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, components)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a parseError to 400 and every store error to 500, per
// §4.5's "all storage errors become 500; parse errors become 400".
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if _, ok := err.(*parseError); ok {
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
