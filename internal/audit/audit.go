// Package audit keeps the append-only record of resolved bids and completed
// sales. Writes are enqueued from the session loop and flushed by a single
// recorder goroutine, so the session critical section never blocks on the
// database.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hammerline/auction-backend/internal/engine"
)

type BidRecord struct {
	ID         uint   `gorm:"primaryKey"`
	BidID      string `gorm:"index"`
	BidderID   string
	BidderName string
	Amount     string
	LotNumber  int
	Status     string
	Origin     string
	Reason     string
	Placed     time.Time
	ResolvedAt time.Time
}

type SaleRecord struct {
	ID          uint `gorm:"primaryKey"`
	LotNumber   int
	Description string
	Amount      string
	Winner      string
	IsOnline    bool
	SoldAt      time.Time
}

type entry struct {
	bid  *BidRecord
	sale *SaleRecord
}

type Store struct {
	db     *gorm.DB
	in     chan entry
	done   chan struct{}
	log    *zap.Logger
	mu     sync.Mutex
	closed bool
}

// Open creates (or reuses) the audit database at path and starts the
// recorder goroutine.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.AutoMigrate(&BidRecord{}, &SaleRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	s := &Store{
		db:   db,
		in:   make(chan entry, 256),
		done: make(chan struct{}),
		log:  log,
	}
	go s.run()
	return s, nil
}

// RecordBid enqueues a terminal bid. Never blocks; an overflowing queue
// loses the record and logs it (no durability guarantee is promised).
func (s *Store) RecordBid(bid engine.Bid, reason string) {
	rec := &BidRecord{
		BidID:      bid.ID,
		BidderID:   bid.BidderID,
		BidderName: bid.BidderName,
		Amount:     bid.Amount.String(),
		LotNumber:  bid.LotNumber,
		Status:     string(bid.Status),
		Origin:     string(bid.Origin),
		Reason:     reason,
		Placed:     bid.Placed,
		ResolvedAt: time.Now().UTC(),
	}
	if !s.enqueue(entry{bid: rec}) {
		s.log.Warn("audit queue unavailable, dropping bid record", zap.String("bid_id", bid.ID))
	}
}

func (s *Store) RecordSale(sale engine.Sale) {
	rec := &SaleRecord{
		LotNumber:   sale.LotNumber,
		Description: sale.Description,
		Amount:      sale.Amount.String(),
		Winner:      sale.Winner,
		IsOnline:    sale.IsOnline,
		SoldAt:      time.Now().UTC(),
	}
	if !s.enqueue(entry{sale: rec}) {
		s.log.Warn("audit queue unavailable, dropping sale record", zap.Int("lot", sale.LotNumber))
	}
}

// enqueue hands a record to the recorder goroutine. It refuses once the
// store is closed and never blocks on a full queue.
func (s *Store) enqueue(e entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.in <- e:
		return true
	default:
		return false
	}
}

// Close drains pending records and stops the recorder. Records arriving
// after Close are dropped, not written.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.in)
	<-s.done
	return nil
}

func (s *Store) run() {
	defer close(s.done)
	for e := range s.in {
		var err error
		switch {
		case e.bid != nil:
			err = s.db.Create(e.bid).Error
		case e.sale != nil:
			err = s.db.Create(e.sale).Error
		}
		if err != nil {
			s.log.Error("audit write failed", zap.Error(err))
		}
	}
}

// Bids returns all recorded bids in insertion order.
func (s *Store) Bids() ([]BidRecord, error) {
	var out []BidRecord
	if err := s.db.Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Sales returns all recorded sales in insertion order.
func (s *Store) Sales() ([]SaleRecord, error) {
	var out []SaleRecord
	if err := s.db.Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
