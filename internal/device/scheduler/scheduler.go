package scheduler

import (
	"log"
	"time"

	"msomi-backend/internal/device/repository"
)

// StaleDeviceSweeper deactivates devices that have not checked in for a while
type StaleDeviceSweeper struct {
	deviceRepo repository.DeviceRepository
	staleAfter time.Duration
	interval   time.Duration
	stopChan   chan struct{}
}

// NewStaleDeviceSweeper creates a new sweeper
func NewStaleDeviceSweeper(deviceRepo repository.DeviceRepository, staleAfter time.Duration) *StaleDeviceSweeper {
	return &StaleDeviceSweeper{
		deviceRepo: deviceRepo,
		staleAfter: staleAfter,
		interval:   6 * time.Hour,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the sweeper loop
func (s *StaleDeviceSweeper) Start() {
	log.Printf("[DeviceSweeper] Starting stale device sweeper (stale after: %s)", s.staleAfter)

	go func() {
		// Run immediately on start
		s.sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				log.Println("[DeviceSweeper] Sweeper stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the sweeper
func (s *StaleDeviceSweeper) Stop() {
	close(s.stopChan)
}

func (s *StaleDeviceSweeper) sweep() {
	cutoff := time.Now().Add(-s.staleAfter)

	count, err := s.deviceRepo.MarkStaleInactive(cutoff)
	if err != nil {
		log.Printf("[DeviceSweeper] Error marking stale devices: %v", err)
		return
	}
	if count > 0 {
		log.Printf("[DeviceSweeper] Deactivated %d stale devices (no activity since %s)", count, cutoff.Format(time.RFC3339))
	}
}
