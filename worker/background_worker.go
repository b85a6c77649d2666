package worker

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/iabalyuk/farewizard/bot"
	"github.com/iabalyuk/farewizard/flightplan"
	"github.com/iabalyuk/farewizard/storage"
)

// BackgroundWorker sweeps the configuration store: it drops
// configurations whose departure window has fully passed, tells their
// owners, and reports how many price-search calls the remaining
// configurations are worth. The searches themselves are executed
// elsewhere.
type BackgroundWorker struct {
	storage      storage.Interface
	notifyCh     chan bot.Notification
	interval     time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
	isRunning    bool
	runningMutex sync.Mutex
}

// NewBackgroundWorkerConfig represents the configuration for the background worker
type NewBackgroundWorkerConfig struct {
	Storage  storage.Interface
	NotifyCh chan bot.Notification
	Interval time.Duration // sweep period
}

// NewBackgroundWorker creates a new background worker instance
func NewBackgroundWorker(config NewBackgroundWorkerConfig) *BackgroundWorker {
	interval := config.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
		log.Printf("Invalid or zero sweep interval provided, defaulting to %v", interval)
	}
	return &BackgroundWorker{
		storage:  config.Storage,
		notifyCh: config.NotifyCh,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. It is a no-op when already running.
func (w *BackgroundWorker) Start() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()
	if w.isRunning {
		return
	}
	w.isRunning = true

	w.wg.Add(1)
	go w.run()
}

// Stop signals the loop to exit and waits for it
func (w *BackgroundWorker) Stop() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()
	if !w.isRunning {
		return
	}
	w.isRunning = false

	close(w.stopCh)
	w.wg.Wait()
}

// run executes one sweep immediately and then on every tick
func (w *BackgroundWorker) run() {
	defer w.wg.Done()

	w.sweep()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

// sweep removes expired configurations and logs the remaining volume
func (w *BackgroundWorker) sweep() {
	expired, err := w.storage.DeleteExpired(time.Now())
	if err != nil {
		log.Printf("Sweep: failed to delete expired configurations: %v", err)
		return
	}
	for _, cfg := range expired {
		w.notify(cfg)
	}
	if len(expired) > 0 {
		log.Printf("Sweep: removed %d expired configurations", len(expired))
	}

	remaining, err := w.storage.ListConfigurations()
	if err != nil {
		log.Printf("Sweep: failed to list configurations: %v", err)
		return
	}
	var calls int64
	for _, cfg := range remaining {
		calls += flightplan.SearchCallCount(cfg.Draft)
	}
	log.Printf("Sweep: %d active configurations, %d search calls per full check", len(remaining), calls)
}

// notify tells a configuration's owner that it expired. The channel
// write must not block the sweep when the bot is backed up.
func (w *BackgroundWorker) notify(cfg storage.SavedConfiguration) {
	text := fmt.Sprintf(
		"Your price watch %s expired: its last possible departure (%s) has passed. Set up a new one with /route or /trip.",
		label(cfg.Draft), cfg.Draft.Window.End.Format("02.01.2006"))
	select {
	case w.notifyCh <- bot.Notification{ChatID: cfg.ChatID, Text: text}:
	default:
		log.Printf("Notify channel full, dropping expiry notice for chat %d", cfg.ChatID)
	}
}

// label renders a configuration as "first origin→last destination"
func label(d flightplan.Draft) string {
	if len(d.Legs) == 0 {
		return "?"
	}
	return fmt.Sprintf("%s→%s", d.Legs[0].Origin, d.Legs[len(d.Legs)-1].Destination)
}
