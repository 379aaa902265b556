package worker

import (
	"context"
	"encoding/json"
	"time"

	"sjsage522/dealrefresher/internal/crawler"
	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/services/publisher"
)

// SummaryKey is the stream field refresh events are published under.
const SummaryKey = "refresh_summary"

// Locker serialises refresh runs. TryAcquire must not block.
type Locker interface {
	TryAcquire() error
	Release()
}

// RefreshEvent is published after every successful run.
type RefreshEvent struct {
	crawler.RunSummary
	Crawler    string `json:"crawler"`
	FinishedAt int64  `json:"finished_at"`
}

// Worker runs the crawler on an interval and publishes each run's summary
type Worker struct {
	crawler   crawler.Crawler
	publisher publisher.Publisher
	lock      Locker
	interval  time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(c crawler.Crawler, pub publisher.Publisher, lock Locker, interval time.Duration) *Worker {
	if pub == nil {
		pub = publisher.Nop{}
	}
	return &Worker{
		crawler:   c,
		publisher: pub,
		lock:      lock,
		interval:  interval,
		now:       time.Now,
		log:       logger.ForWorker(),
	}
}

// Start runs a refresh immediately and then once per interval until ctx is
// cancelled. Failed runs are logged; the next tick retries.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Str("crawler", w.crawler.GetName()).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Scheduled refresh failed")
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single refresh under the run lock. It returns the lock's
// error unchanged when another refresh is in progress.
func (w *Worker) RunOnce(ctx context.Context) (crawler.RunSummary, error) {
	if w.lock != nil {
		if err := w.lock.TryAcquire(); err != nil {
			w.log.Info().Err(err).Msg("Skipping refresh")
			return crawler.RunSummary{}, err
		}
		defer w.lock.Release()
	}

	start := w.now()
	summary, err := w.crawler.Run(ctx)
	if err != nil {
		return summary, err
	}

	w.publish(ctx, summary)
	w.log.Debug().Dur("elapsed", w.now().Sub(start)).Msg("Refresh took")
	return summary, nil
}

func (w *Worker) publish(ctx context.Context, summary crawler.RunSummary) {
	data, err := json.Marshal(RefreshEvent{
		RunSummary: summary,
		Crawler:    w.crawler.GetName(),
		FinishedAt: w.now().Unix(),
	})
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to encode refresh event")
		return
	}

	if err := w.publisher.Publish(ctx, SummaryKey, data); err != nil {
		w.log.Warn().Err(err).Msg("Failed to publish refresh event")
		return
	}
	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to trim streams")
	}
}
