package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dray-io/asdelete/internal/audit"
	"github.com/dray-io/asdelete/internal/logging"
	"github.com/dray-io/asdelete/internal/store"
	"github.com/dray-io/asdelete/internal/storetime"
)

// DefaultProgressEvery is the match interval between progress lines.
const DefaultProgressEvery = 10000

const auditFlushTimeout = 30 * time.Second

// Record outcomes, used as metric label values.
const (
	OutcomeKept    = "kept"
	OutcomeDeleted = "deleted"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ErrInvalidRequest is returned by Run before scanning when the request is
// malformed.
var ErrInvalidRequest = errors.New("purge: invalid request")

// MetricsRecorder records purge metrics.
// This allows the purge package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordOutcome(namespace, set, outcome string)
	RecordThreshold(namespace, set string, threshold int64)
	RecordRun(namespace, set string, durationSeconds float64, success bool, finishedUnix int64)
}

// Request describes one purge run.
type Request struct {
	// RunID tags log lines and audit events. Optional.
	RunID string

	// Host and Port are logged only; the store is already connected.
	Host string
	Port int

	Namespace  string
	Collection string

	// Days is the horizon added to the current time. Negative values move
	// the threshold into the past.
	Days int

	// Limit caps delete calls. 0 deletes nothing.
	Limit int64

	// Verbose logs the expiration of every matching record.
	Verbose bool
}

// Stats are the counters of one run.
type Stats struct {
	Threshold int64

	// Total counts every scanned record.
	Total int64

	// Matched counts records that expire before the threshold, including
	// those left alone because the budget was spent.
	Matched int64

	// Deleted counts successful deletes. A record that was already gone
	// counts as deleted.
	Deleted int64

	// Failed counts delete calls that returned an error.
	Failed int64

	// Skipped counts matches suppressed by the budget.
	Skipped int64

	// AuditErrors counts events the audit sink could not record.
	AuditErrors int64
}

// Controller runs purges against a store.
type Controller struct {
	store             store.Store
	logger            *logging.Logger
	metrics           MetricsRecorder
	audit             audit.Sink
	now               func() time.Time
	progressEvery     int64
	stopOnDeleteError bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records per-record outcomes and per-run results.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithAudit sends an event per deleted record to sink.
func WithAudit(sink audit.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.audit = sink
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithProgressEvery sets the progress interval. Non-positive values keep
// the default.
func WithProgressEvery(n int64) Option {
	return func(c *Controller) {
		if n > 0 {
			c.progressEvery = n
		}
	}
}

// WithStopOnDeleteError aborts the run on the first failed delete.
func WithStopOnDeleteError(stop bool) Option {
	return func(c *Controller) { c.stopOnDeleteError = stop }
}

// NewController creates a Controller. With a nil logger each Run logs to the
// logger attached to its context (see logging.FromCtx).
func NewController(st store.Store, logger *logging.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:         st,
		logger:        logger,
		audit:         audit.Nop{},
		now:           time.Now,
		progressEvery: DefaultProgressEvery,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (r Request) validate() error {
	if r.Namespace == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidRequest)
	}
	if r.Collection == "" {
		return fmt.Errorf("%w: set is required", ErrInvalidRequest)
	}
	if r.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidRequest, r.Limit)
	}
	return nil
}

// Run scans req.Collection once. It returns the counters gathered so far
// together with any error that aborted the scan. Failed deletes do not
// abort the run unless the Controller was built WithStopOnDeleteError.
func (c *Controller) Run(ctx context.Context, req Request) (Stats, error) {
	if err := req.validate(); err != nil {
		return Stats{}, err
	}

	log := c.logger
	if log == nil {
		log = logging.FromCtx(ctx)
	}
	if req.RunID != "" {
		log = log.WithRunID(req.RunID)
	}

	start := c.now()
	stats := Stats{Threshold: storetime.Threshold(start, req.Days)}

	log.Infof("starting purge", map[string]any{
		"host":      req.Host,
		"port":      req.Port,
		"namespace": req.Namespace,
		"set":       req.Collection,
		"days":      req.Days,
		"limit":     req.Limit,
		"threshold": storetime.FromStoreTime(stats.Threshold).Format(time.RFC3339),
	})
	if c.metrics != nil {
		c.metrics.RecordThreshold(req.Namespace, req.Collection, stats.Threshold)
	}

	runErr := c.scan(ctx, req, log, &stats)

	// Deletes already happened; their events go out even when ctx is done.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditFlushTimeout)
	err := c.audit.Flush(flushCtx)
	cancel()
	if err != nil {
		stats.AuditErrors++
		log.Warnf("audit flush failed", map[string]any{"error": err.Error()})
	}

	finished := c.now()
	if c.metrics != nil {
		c.metrics.RecordRun(req.Namespace, req.Collection, finished.Sub(start).Seconds(), runErr == nil, finished.Unix())
	}

	fields := map[string]any{
		"matched":    stats.Matched,
		"deleted":    stats.Deleted,
		"failed":     stats.Failed,
		"skipped":    stats.Skipped,
		"scanned":    stats.Total,
		"durationMs": finished.Sub(start).Milliseconds(),
	}
	if stats.AuditErrors > 0 {
		fields["auditErrors"] = stats.AuditErrors
	}

	if runErr != nil {
		log.Error(store.ResultMessage(runErr))
		fields["error"] = runErr.Error()
		log.Errorf("Error details", fields)
		return stats, fmt.Errorf("purge %s/%s: %w", req.Namespace, req.Collection, runErr)
	}

	log.Infof(fmt.Sprintf("Deleted %d records from set %s", stats.Deleted, req.Collection), fields)
	return stats, nil
}

func (c *Controller) scan(ctx context.Context, req Request, log *logging.Logger, stats *Stats) error {
	for rec, err := range c.store.Scan(ctx, req.Namespace, req.Collection) {
		if err != nil {
			return err
		}
		stats.Total++

		if rec.Expiration >= stats.Threshold {
			c.recordOutcome(req, OutcomeKept)
			continue
		}

		if req.Verbose {
			log.Infof("record expires", map[string]any{
				"key":        rec.Key.String(),
				"expiration": storetime.FromStoreTime(rec.Expiration).Format(time.RFC3339),
			})
		}

		var deleteErr error
		if stats.Matched < req.Limit {
			deleteErr = c.delete(ctx, req, rec, log, stats)
		} else {
			stats.Skipped++
			c.recordOutcome(req, OutcomeSkipped)
		}

		stats.Matched++
		if stats.Matched%c.progressEvery == 0 {
			log.Infof(fmt.Sprintf("Count: %d/%d (%d%%)", stats.Matched, stats.Total, stats.Matched*100/stats.Total), map[string]any{
				"count":   stats.Matched,
				"total":   stats.Total,
				"percent": stats.Matched * 100 / stats.Total,
			})
		}

		if deleteErr != nil && c.stopOnDeleteError {
			return deleteErr
		}
	}
	return nil
}

// delete issues one delete. The returned error is already counted and logged.
func (c *Controller) delete(ctx context.Context, req Request, rec store.Record, log *logging.Logger, stats *Stats) error {
	err := c.store.Delete(ctx, rec.Key)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		stats.Failed++
		c.recordOutcome(req, OutcomeFailed)
		log.Warnf("delete failed", map[string]any{
			"key":    rec.Key.String(),
			"result": store.ResultMessage(err),
			"error":  err.Error(),
		})
		return err
	}

	stats.Deleted++
	c.recordOutcome(req, OutcomeDeleted)

	ev := audit.Event{
		RunID:      req.RunID,
		Namespace:  req.Namespace,
		Collection: req.Collection,
		Key:        rec.Key.String(),
		Expiration: storetime.FromStoreTime(rec.Expiration),
		DeletedAt:  c.now().UTC(),
	}
	if err := c.audit.Record(ctx, ev); err != nil {
		stats.AuditErrors++
		// Logged once per run; the summary carries the total.
		if stats.AuditErrors == 1 {
			log.Warnf("audit record failed", map[string]any{"error": err.Error()})
		}
	}
	return nil
}

func (c *Controller) recordOutcome(req Request, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordOutcome(req.Namespace, req.Collection, outcome)
	}
}
