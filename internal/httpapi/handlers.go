package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hammerline/auction-backend/internal/session"
	"github.com/hammerline/auction-backend/pkg/types"
)

const queryTimeout = 2 * time.Second

// Status serves the read-only projection of the auction state for the host
// and collaborators. Same redaction as the bidder snapshot.
func Status(sess *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan session.View, 1)
		sess.Inbox() <- session.StateQuery{Reply: reply}

		select {
		case view := <-reply:
			st := view.State
			payload := types.StatePayload{
				IsLive:       st.IsLive,
				CurrentBid:   st.CurrentBid,
				BidIncrement: st.BidIncrement,
				BidderCount:  view.BidderCount,
			}
			if st.CurrentLot != nil {
				payload.Lot = &types.LotPayload{
					Number:      st.CurrentLot.Number,
					Description: st.CurrentLot.Description,
					StartingBid: st.CurrentLot.StartingBid,
				}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(payload)

		case <-time.After(queryTimeout):
			http.Error(w, "state query timed out", http.StatusServiceUnavailable)
		}
	}
}

type recordSaleRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Winner   string          `json:"winner"`
	IsOnline bool            `json:"isOnline"`
}

// RecordSale is the checkout-collaborator seam: the payment flow reports a
// completed sale, which triggers the lotSold broadcast and clears the lot.
func RecordSale(sess *session.Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordSaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.Winner == "" {
			http.Error(w, "winner is required", http.StatusBadRequest)
			return
		}

		sess.Inbox() <- session.RecordSale{
			Amount:   req.Amount,
			Winner:   req.Winner,
			IsOnline: req.IsOnline,
		}
		log.Info("sale recorded via collaborator seam",
			zap.String("winner", req.Winner),
			zap.String("amount", req.Amount.String()))

		w.WriteHeader(http.StatusAccepted)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
