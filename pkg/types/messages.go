package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client -> Server message types.
const (
	MsgRegisterBidder = "register:bidder"
	MsgRegisterClerk  = "register:clerk"
	MsgBidSubmit      = "bid:submit"
	MsgBidAccept      = "bid:accept"
	MsgBidReject      = "bid:reject"
	MsgAuctionStart   = "auction:start"
	MsgAuctionSetLot  = "auction:setLot"
	MsgUpdateBid      = "auction:updateBid"
	MsgAuctionSold    = "auction:sold"
	MsgAuctionEnd     = "auction:end"
)

// Server -> Client message types.
const (
	MsgBidConfirmed   = "bid:confirmed"
	MsgBidAccepted    = "bid:accepted"
	MsgBidRejected    = "bid:rejected"
	MsgBidError       = "bid:error"
	MsgBidNew         = "bid:new"
	MsgBiddersCount   = "bidders:count"
	MsgAuctionState   = "auction:state"
	MsgFullState      = "auction:fullState"
	MsgAuctionStarted = "auction:started"
	MsgLotChanged     = "auction:lotChanged"
	MsgBidUpdate      = "auction:bidUpdate"
	MsgLotSold        = "auction:lotSold"
	MsgAuctionEnded   = "auction:ended"
)

type ClientMessage struct {
	Type        string          `json:"type"`
	ID          string          `json:"id,omitempty"`   // register
	Name        string          `json:"name,omitempty"` // register
	Amount      decimal.Decimal `json:"amount"`
	BidID       string          `json:"bidId,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Lot         *LotPayload     `json:"lot,omitempty"`
	StartingBid decimal.Decimal `json:"startingBid"`
	Increment   decimal.Decimal `json:"bidIncrement"`
	Source      string          `json:"source,omitempty"` // auction:updateBid
	Winner      string          `json:"winner,omitempty"` // auction:sold
	IsOnline    bool            `json:"isOnline,omitempty"`
}

type ServerMessage struct {
	Type       string            `json:"type"`
	Message    string            `json:"message,omitempty"` // bid:error
	Bid        *BidPayload       `json:"bid,omitempty"`
	Reason     string            `json:"reason,omitempty"`     // bid:rejected
	CurrentBid *decimal.Decimal  `json:"currentBid,omitempty"` // auction:bidUpdate, auction:lotChanged
	Source     string            `json:"source,omitempty"`
	BidderName string            `json:"bidderName,omitempty"`
	Lot        *LotPayload       `json:"lot,omitempty"`
	Sale       *SalePayload      `json:"sale,omitempty"`
	State      *StatePayload     `json:"state,omitempty"`     // auction:state (redacted, bidders)
	FullState  *FullStatePayload `json:"fullState,omitempty"` // auction:fullState (clerks)
	Counts     *CountsPayload    `json:"counts,omitempty"`    // bidders:count
}

type LotPayload struct {
	Number      int             `json:"number"`
	Description string          `json:"description"`
	StartingBid decimal.Decimal `json:"startingBid"`
}

type BidPayload struct {
	ID         string          `json:"id"`
	BidderID   string          `json:"bidderId"`
	BidderName string          `json:"bidderName"`
	Amount     decimal.Decimal `json:"amount"`
	LotNumber  int             `json:"lotNumber"`
	Placed     time.Time       `json:"placed"`
	Status     string          `json:"status"`
	Origin     string          `json:"origin"`
}

// StatePayload is the redacted view delivered to bidders: no pending queue,
// no other bidders' identities.
type StatePayload struct {
	IsLive       bool            `json:"isLive"`
	Lot          *LotPayload     `json:"lot"`
	CurrentBid   decimal.Decimal `json:"currentBid"`
	BidIncrement decimal.Decimal `json:"bidIncrement"`
	BidderCount  int             `json:"bidderCount"`
}

// FullStatePayload is the clerk view, pending queue included.
type FullStatePayload struct {
	IsLive       bool            `json:"isLive"`
	Lot          *LotPayload     `json:"lot"`
	CurrentBid   decimal.Decimal `json:"currentBid"`
	BidIncrement decimal.Decimal `json:"bidIncrement"`
	PendingBids  []BidPayload    `json:"pendingBids"`
	Counts       CountsPayload   `json:"counts"`
}

type CountsPayload struct {
	Bidders int `json:"bidders"`
	Clerks  int `json:"clerks"`
}

type SalePayload struct {
	LotNumber   int             `json:"lotNumber"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Winner      string          `json:"winner"`
	IsOnline    bool            `json:"isOnline"`
}
