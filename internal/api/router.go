package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter configures the Query Surface's HTTP routes (§4.5).
func NewRouter(s *Server, log *logrus.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(log))
	r.Use(JSONHeaders)

	r.Route("/v1/{chain}", func(r chi.Router) {
		r.Post("/contract_state", s.ContractState)
		r.Post("/tokens", s.Tokens)
		r.Post("/protocol_components", s.ProtocolComponents)
	})

	return r
}
