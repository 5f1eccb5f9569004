/*
autoclose.go - Automated day-closing loop

PURPOSE:
  Periodically sweeps past workdays that still hold pending visits and
  closes them, pushing the leftover work onto future days.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Scans ledger rows up to yesterday
  - Skips days whose visits are all completed
  - Re-closing an already swept day is a no-op, so the loop is safe to
    run repeatedly

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the loop is active (default: false)

USAGE:
  closer := NewAutoCloser(store, handler)
  closer.Start()
  // ... later
  closer.Stop()

SEE ALSO:
  - handlers.go: CloseWorkday endpoint (manual closing)
  - schedule/close.go: CloseEngine
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fieldops/visit-engine/schedule"
)

// AutoCloser handles automated closing of past workdays.
type AutoCloser struct {
	Store         schedule.TxStore
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAutoCloser creates a new auto-closer, disabled by default.
func NewAutoCloser(store schedule.TxStore, handler *Handler) *AutoCloser {
	return &AutoCloser{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		stop:          make(chan bool),
	}
}

// Start begins the loop.
func (ac *AutoCloser) Start() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if !ac.Enabled {
		log.Println("[AutoClose] Disabled, not starting")
		return
	}

	ac.ticker = time.NewTicker(ac.CheckInterval)
	ac.wg.Add(1)

	go ac.run()

	log.Printf("[AutoClose] Started with check interval: %v", ac.CheckInterval)
}

// Stop stops the loop. Safe to call more than once.
func (ac *AutoCloser) Stop() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.ticker == nil {
		return
	}
	ac.ticker.Stop()
	ac.ticker = nil
	close(ac.stop)
	ac.wg.Wait()
	log.Println("[AutoClose] Stopped")
}

func (ac *AutoCloser) run() {
	defer ac.wg.Done()

	// Run immediately on start
	ac.sweep()

	for {
		select {
		case <-ac.ticker.C:
			ac.sweep()
		case <-ac.stop:
			return
		}
	}
}

func (ac *AutoCloser) sweep() {
	ctx := context.Background()
	yesterday := schedule.Today().AddDays(-1)

	workdays, err := ac.Store.ListWorkdays(ctx, nil, &yesterday, 0)
	if err != nil {
		log.Printf("[AutoClose] Error listing workdays: %v", err)
		return
	}

	closedCount := 0
	for _, wd := range workdays {
		if wd.Visits == wd.Completed {
			continue
		}

		result, err := ac.Handler.Closer.Close(ctx, wd.Date)
		if err != nil {
			log.Printf("[AutoClose] Error closing %s: %v", wd.Date, err)
			continue
		}
		if result.Summary.TotalPending == 0 {
			continue
		}

		closedCount++
		log.Printf("[AutoClose] Closed %s: %d reallocated, %d failed",
			wd.Date, result.Summary.Succeeded, result.Summary.Failed)
	}

	if closedCount > 0 {
		log.Printf("[AutoClose] Sweep complete: %d days closed", closedCount)
	}
}
