package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

var notifyResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "facilitator",
	Subsystem: "observer",
	Name:      "notify_results_total",
}, []string{"status"})

// Notifier periodically flushes every repository's pending updates to the
// attached services. Repositories flush sequentially in dependency order so
// checkpoint updates land before the message updates that rely on them.
type Notifier struct {
	repo     *repository.Repo
	logger   logging.Logger
	interval time.Duration
}

func NewNotifier(repo *repository.Repo, logger logging.Logger, interval time.Duration) *Notifier {
	return &Notifier{
		repo:     repo,
		logger:   logger,
		interval: interval,
	}
}

// Start blocks until ctx is cancelled, flushing on every tick.
func (n *Notifier) Start(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Flush(ctx)
		}
	}
}

func (n *Notifier) Flush(ctx context.Context) {
	for _, notifier := range n.repo.Notifiers() {
		if err := notifier.Notify(ctx); err != nil {
			notifyResults.WithLabelValues("error").Inc()
			n.logger.WithError(err).Error("Repository flush failed")
			continue
		}
		notifyResults.WithLabelValues("ok").Inc()
	}
}
