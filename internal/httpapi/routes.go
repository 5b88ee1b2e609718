package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hammerline/auction-backend/internal/session"
	"github.com/hammerline/auction-backend/internal/ws"
)

func SetupRoutes(sess *session.Session, wsOpts ws.Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/auction/status", Status(sess))
	r.Post("/auction/record-sale", RecordSale(sess, log))
	r.Get("/ws", ws.Handler(sess, wsOpts, log))
	return r
}
