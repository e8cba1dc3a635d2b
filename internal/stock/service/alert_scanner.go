package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/djiba142/Pharmacie-sub000/internal/catalog/repository"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/messaging"
)

// ExpiryScanner walks the lot catalog once a day and publishes expiry
// events: stock.lot.expiring for lots inside the warning window and
// stock.lot.expired for lots already past their date.
type ExpiryScanner struct {
	lots      *repository.LotRepository
	publisher *messaging.Publisher
	window    time.Duration
	scanAt    string
	scheduler *gocron.Scheduler
	logger    *logger.Logger
}

// NewExpiryScanner creates an expiry scanner. window is how far ahead to
// warn, scanAt is the daily run time in "HH:MM".
func NewExpiryScanner(
	lots *repository.LotRepository,
	publisher *messaging.Publisher,
	window time.Duration,
	scanAt string,
	log *logger.Logger,
) *ExpiryScanner {
	return &ExpiryScanner{
		lots:      lots,
		publisher: publisher,
		window:    window,
		scanAt:    scanAt,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    log,
	}
}

// Start schedules the daily scan and begins running it asynchronously.
func (s *ExpiryScanner) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.scanAt).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Scan(ctx); err != nil {
			s.logger.Error().Err(err).Msg("lot expiry scan failed")
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info().Str("scan_at", s.scanAt).Dur("window", s.window).Msg("lot expiry scanner started")
	return nil
}

// Stop stops the scheduler.
func (s *ExpiryScanner) Stop() {
	s.scheduler.Stop()
}

// Scan runs one pass over the catalog.
func (s *ExpiryScanner) Scan(ctx context.Context) error {
	now := time.Now().UTC()
	lots, err := s.lots.ListExpiringWithin(ctx, now.Add(s.window))
	if err != nil {
		return err
	}

	var expiring, expired int
	for _, lot := range lots {
		days := int(time.Until(lot.ExpiryDate).Hours() / 24)
		eventType := messaging.EventLotExpiring
		if lot.ExpiryDate.Before(now) {
			eventType = messaging.EventLotExpired
			expired++
		} else {
			expiring++
		}

		if s.publisher == nil {
			continue
		}
		err := s.publisher.Publish(ctx, eventType, messaging.LotExpiryEvent{
			LotID:           lot.ID,
			MedicamentID:    lot.MedicamentID,
			BatchNumber:     lot.BatchNumber,
			ExpiryDate:      lot.ExpiryDate,
			DaysUntilExpiry: days,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot expiry event")
		}
	}

	s.logger.Info().
		Int("expiring", expiring).
		Int("expired", expired).
		Msg("lot expiry scan complete")
	return nil
}
