package refresh

// #region imports
import (
	"context"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/fingerprint"
	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
	"github.com/danielpatrickdp/aura-plan/internal/logging"
	"github.com/danielpatrickdp/aura-plan/internal/metrics"
	"github.com/sirupsen/logrus"
)

// #endregion

// #region action

// Action is what one controller round did for a bucket.
type Action string

const (
	ActionEmpty     Action = "empty"     // no tasks; nothing created or modified
	ActionSkipped   Action = "skipped"   // cached fingerprint matched
	ActionCoalesced Action = "coalesced" // bucket in flight; folded into its follow-up round
	ActionGenerated Action = "generated" // new insight committed
	ActionFailed    Action = "failed"    // generation or commit failed; cache untouched
)

// journalDecision maps an action onto the refresh journal vocabulary.
func (a Action) journalDecision() string {
	switch a {
	case ActionEmpty:
		return logging.DecisionEmpty
	case ActionSkipped:
		return logging.DecisionSkip
	case ActionCoalesced:
		return logging.DecisionCoalesce
	case ActionGenerated:
		return logging.DecisionCommit
	default:
		return logging.DecisionFail
	}
}

// #endregion

// #region result

// Result describes the outcome of EnsureFresh or Refresh.
// Err is diagnostic only: failures never escape as panics or fatal errors.
type Result struct {
	Bucket      horizon.Bucket
	Action      Action
	Fingerprint fingerprint.Value
	Attempts    int
	Err         error
}

// #endregion

// #region view

// Status describes what a caller should render for a bucket.
type Status string

const (
	StatusHidden   Status = "hidden"   // no tasks, show nothing
	StatusFresh    Status = "fresh"    // cached insight matches the tasks
	StatusStale    Status = "stale"    // cached insight predates the latest task change
	StatusFallback Status = "fallback" // nothing cached yet, static text
)

// View is the renderable state of one bucket.
type View struct {
	Bucket    horizon.Bucket
	Status    Status
	Insight   insight.Insight
	UpdatedAt time.Time
	Loading   bool
}

// #endregion

// #region options

// Recorder receives one entry per controller decision. *logging.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, entry logging.JournalEntry) error
}

// RetryPolicy bounds automatic retries of a failed generation call.
// The zero value disables them: a failure is retried only on the next trigger.
type RetryPolicy struct {
	Attempts int           // extra attempts after the first failure
	Backoff  time.Duration // delay before retry n is n*Backoff
}

// Options configures a Controller. All fields are optional.
type Options struct {
	Timeout  time.Duration // per generation attempt; zero means none
	Retry    RetryPolicy
	Logger   logrus.FieldLogger
	Metrics  *metrics.Metrics
	Recorder Recorder
	Now      func() time.Time
}

// #endregion
