// Package refresh decides when a horizon's cached insight must be regenerated
// and makes sure each bucket has at most one generation call in flight.
package refresh

// #region imports
import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/fingerprint"
	"github.com/danielpatrickdp/aura-plan/internal/generator"
	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
	"github.com/danielpatrickdp/aura-plan/internal/logging"
	"github.com/danielpatrickdp/aura-plan/internal/store"
	"github.com/sirupsen/logrus"
)

// #endregion

// #region controller-struct

type request struct {
	// ctx is the context the round runs on. A queued request keeps the
	// queuing caller's values but not its cancellation, because that caller
	// has already returned and the owner's context may end first.
	ctx   context.Context
	tasks []string
	force bool
}

// slot is the per-bucket in-flight state. pending holds the latest snapshot
// that arrived while a call was running; it is run once the call resolves.
type slot struct {
	inFlight bool
	pending  *request
}

// Controller is the single owner of cache writes for every bucket.
type Controller struct {
	store store.Store
	gen   generator.Generator
	opts  Options
	log   logrus.FieldLogger

	mu    sync.Mutex
	slots map[horizon.Bucket]*slot

	background sync.WaitGroup
}

// #endregion

// #region constructor

// NewController wires a controller to its store and generator.
func NewController(s store.Store, g generator.Generator, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Controller{
		store: s,
		gen:   g,
		opts:  opts,
		log:   opts.Logger.WithField("component", "refresh"),
		slots: make(map[horizon.Bucket]*slot),
	}
}

// #endregion

// #region public-api

// EnsureFresh regenerates b's insight if the cached one was produced from a
// different task snapshot. It blocks while this call owns the bucket's
// generation, including any follow-up rounds queued by concurrent callers,
// and returns the result of the last round it ran. Follow-up rounds are not
// cancelled with ctx: they belong to callers that were told their snapshot
// was queued.
func (c *Controller) EnsureFresh(ctx context.Context, b horizon.Bucket, tasks []string) Result {
	return c.run(ctx, b, tasks, false)
}

// Refresh always regenerates, even when the tasks are unchanged.
func (c *Controller) Refresh(ctx context.Context, b horizon.Bucket, tasks []string) Result {
	return c.run(ctx, b, tasks, true)
}

// Go runs EnsureFresh (or Refresh when force is set) in the background.
func (c *Controller) Go(ctx context.Context, b horizon.Bucket, tasks []string, force bool) {
	tasks = cloneTasks(tasks)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.run(ctx, b, tasks, force)
	}()
}

// Wait blocks until every call started with Go has returned.
func (c *Controller) Wait() {
	c.background.Wait()
}

// InFlight reports whether b has a generation call running.
func (c *Controller) InFlight(b horizon.Bucket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[b]
	return ok && s.inFlight
}

// View returns what a caller should display for b given its current tasks.
// A missing entry is replaced by the static fallback; it is never stored.
func (c *Controller) View(ctx context.Context, b horizon.Bucket, tasks []string) View {
	v := View{Bucket: b, Loading: c.InFlight(b)}
	if len(tasks) == 0 {
		v.Status = StatusHidden
		return v
	}

	entry, ok, err := c.store.Get(ctx, b)
	if err != nil {
		c.log.WithError(err).WithField("bucket", b).Warn("store read failed, showing fallback")
	}
	if err != nil || !ok {
		v.Status = StatusFallback
		v.Insight = insight.Fallback()
		return v
	}

	v.Insight = entry.Insight
	v.UpdatedAt = entry.UpdatedAt
	v.Status = StatusFresh
	if !entry.Fresh(fingerprint.Of(tasks)) {
		v.Status = StatusStale
	}
	return v
}

// #endregion

// #region run

func (c *Controller) run(ctx context.Context, b horizon.Bucket, tasks []string, force bool) Result {
	if len(tasks) == 0 {
		c.mu.Lock()
		// The latest snapshot is empty, so any queued follow-up is obsolete.
		if s, ok := c.slots[b]; ok {
			s.pending = nil
		}
		c.mu.Unlock()
		return c.report(ctx, Result{Bucket: b, Action: ActionEmpty, Fingerprint: fingerprint.Empty}, force)
	}

	req := request{ctx: ctx, tasks: cloneTasks(tasks), force: force}

	c.mu.Lock()
	s := c.slotFor(b)
	if s.inFlight {
		req.ctx = context.WithoutCancel(ctx)
		if s.pending != nil {
			req.force = req.force || s.pending.force
		}
		s.pending = &req
		c.mu.Unlock()
		return c.report(ctx, Result{Bucket: b, Action: ActionCoalesced, Fingerprint: fingerprint.Of(req.tasks)}, force)
	}
	s.inFlight = true
	c.mu.Unlock()

	c.opts.Metrics.BucketStarted()
	defer c.opts.Metrics.BucketFinished()

	for {
		res := c.round(req.ctx, b, req)

		c.mu.Lock()
		next := s.pending
		s.pending = nil
		if next == nil {
			s.inFlight = false
			c.mu.Unlock()
			return res
		}
		c.mu.Unlock()
		req = *next
	}
}

func (c *Controller) slotFor(b horizon.Bucket) *slot {
	s, ok := c.slots[b]
	if !ok {
		s = &slot{}
		c.slots[b] = s
	}
	return s
}

func (c *Controller) hasPending(b horizon.Bucket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[b]
	return ok && s.pending != nil
}

// #endregion

// #region round

// round runs the decision algorithm once for a snapshot the caller owns.
func (c *Controller) round(ctx context.Context, b horizon.Bucket, req request) Result {
	f := fingerprint.Of(req.tasks)
	res := Result{Bucket: b, Fingerprint: f}

	if !req.force {
		entry, ok, err := c.store.Get(ctx, b)
		switch {
		case err != nil:
			c.log.WithError(err).WithField("bucket", b).Warn("store read failed, treating as miss")
		case ok && entry.Fresh(f):
			res.Action = ActionSkipped
			return c.report(ctx, res, req.force)
		}
	}

	ins, attempts, err := c.generate(ctx, b, req.tasks)
	res.Attempts = attempts
	if err != nil {
		res.Action = ActionFailed
		res.Err = err
		return c.report(ctx, res, req.force)
	}

	entry := store.Entry{Insight: ins, Fingerprint: f, UpdatedAt: c.opts.Now()}
	if err := c.store.Put(ctx, b, entry); err != nil {
		res.Action = ActionFailed
		res.Err = fmt.Errorf("commit: %w", err)
		return c.report(ctx, res, req.force)
	}

	res.Action = ActionGenerated
	return c.report(ctx, res, req.force)
}

// #endregion

// #region generate

// generate calls the generator, retrying per the retry policy.
func (c *Controller) generate(ctx context.Context, b horizon.Bucket, tasks []string) (insight.Insight, int, error) {
	for attempts := 1; ; attempts++ {
		ins, err := c.attempt(ctx, b, tasks)
		if err == nil {
			return ins, attempts, nil
		}
		if !c.opts.Retry.shouldRetry(ctx, attempts, err, c.hasPending(b)) {
			return insight.Insight{}, attempts, err
		}
		c.log.WithError(err).WithFields(logrus.Fields{
			"bucket":  b,
			"attempt": attempts,
		}).Debug("generation failed, retrying")
		if werr := c.opts.Retry.wait(ctx, attempts); werr != nil {
			return insight.Insight{}, attempts, fmt.Errorf("%w (retry abandoned: %w)", err, werr)
		}
	}
}

// attempt makes one bounded generation call. A panicking generator is
// reported as an error so the bucket's in-flight state is always released.
func (c *Controller) attempt(ctx context.Context, b horizon.Bucket, tasks []string) (ins insight.Insight, err error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			ins, err = insight.Insight{}, fmt.Errorf("generator panic: %v", r)
		}
		c.opts.Metrics.RecordGenerate(string(b), time.Since(start).Seconds(), err != nil)
	}()

	ins, err = c.gen.Generate(ctx, b, cloneTasks(tasks))
	if err != nil {
		return insight.Insight{}, err
	}
	if err := ins.Validate(); err != nil {
		return insight.Insight{}, err
	}
	return ins, nil
}

// #endregion

// #region report

// report logs, counts and journals a decision, then returns it unchanged.
func (c *Controller) report(ctx context.Context, res Result, force bool) Result {
	trigger := logging.TriggerAuto
	if force {
		trigger = logging.TriggerManual
	}

	entry := c.log.WithFields(logrus.Fields{
		"bucket":      res.Bucket,
		"action":      res.Action,
		"trigger":     trigger,
		"fingerprint": res.Fingerprint.Short(),
	})
	switch res.Action {
	case ActionGenerated:
		entry.WithField("attempts", res.Attempts).Info("insight committed")
	case ActionFailed:
		entry.WithError(res.Err).WithField("attempts", res.Attempts).Warn("insight generation failed, keeping previous entry")
	default:
		entry.Debug("no generation needed")
	}

	c.opts.Metrics.RecordDecision(string(res.Bucket), string(res.Action))

	if c.opts.Recorder != nil {
		je := logging.JournalEntry{
			Bucket:   string(res.Bucket),
			Trigger:  trigger,
			Decision: res.Action.journalDecision(),
			Attempts: res.Attempts,
		}
		if res.Fingerprint != fingerprint.Empty {
			je.Fingerprint = string(res.Fingerprint)
		}
		if res.Err != nil {
			je.Reason = res.Err.Error()
		}
		if err := c.opts.Recorder.Record(context.WithoutCancel(ctx), je); err != nil {
			c.log.WithError(err).Warn("journal write failed")
		}
	}
	return res
}

// #endregion

// #region helpers

func cloneTasks(tasks []string) []string {
	out := make([]string, len(tasks))
	copy(out, tasks)
	return out
}

// #endregion
