package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cardbridge/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) { //nolint:funlen
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			// authorized zone: user id приходит из заголовка шлюза
			r.Route("/deals", func(r chi.Router) {
				r.Post("/", handler(s.postV1Deal))
				r.Get("/", handler(s.getV1Deals))
				r.Get("/{id}", handler(s.getV1Deal))
				r.Get("/{id}/escrow", handler(s.getV1DealEscrow))

				r.Post("/{id}/accept", handler(s.postV1DealAccept))
				r.Post("/{id}/fund", handler(s.postV1DealFund))
				r.Post("/{id}/proof", handler(s.postV1DealProof))
				r.Post("/{id}/confirm", handler(s.postV1DealConfirm))
				r.Post("/{id}/dispute", handler(s.postV1DealDispute))
				r.Post("/{id}/cancel", handler(s.postV1DealCancel))
			})
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, err)
		}
	}
}
