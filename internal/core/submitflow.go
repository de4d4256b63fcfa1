package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// SubmitTimings are the fixed delays of the submit interaction.
type SubmitTimings struct {
	Processing    time.Duration
	SubmittedHold time.Duration
	Redirect      time.Duration
}

// SubmitFlowDeps collects the collaborators of a SubmitFlow. Balance,
// Profile, Records, Events and Logger are optional.
type SubmitFlowDeps struct {
	Controller *SubmitController
	Submitter  TaskSubmitter
	Balance    func() (float64, bool)
	Profile    Refresher
	Records    Refresher
	Navigator  Navigator
	Notifier   Notifier
	Clock      Clock
	Events     EventLogger
	Logger     logrus.FieldLogger
	Timings    SubmitTimings
}

// SubmitFlow drives one submit interaction to completion, blocking the
// caller for the configured delays. It is the driver used by one-shot
// surfaces; the TUI drives the same controller with timer messages.
type SubmitFlow struct {
	d SubmitFlowDeps
}

// SubmitFlowFactory builds a SubmitFlow reporting to the given surface.
type SubmitFlowFactory func(nav Navigator, notifier Notifier) (*SubmitFlow, error)

// NewSubmitFlow validates deps and returns a SubmitFlow.
func NewSubmitFlow(deps SubmitFlowDeps) (*SubmitFlow, error) {
	if deps.Controller == nil {
		return nil, fmt.Errorf("submit flow: controller is required")
	}
	if deps.Submitter == nil {
		return nil, fmt.Errorf("submit flow: submitter is required")
	}
	if deps.Navigator == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("submit flow: navigator and notifier are required")
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &SubmitFlow{d: deps}, nil
}

// Controller returns the state controller shared with other drivers.
func (f *SubmitFlow) Controller() *SubmitController { return f.d.Controller }

// Submit runs the interaction for rec. The returned Outcome describes how it
// ended; DecisionIgnored and DecisionInsufficient map to OutcomeStale and
// OutcomeMustDeposit respectively. A cancelled ctx abandons the key and
// returns ctx.Err() without touching state again.
func (f *SubmitFlow) Submit(ctx context.Context, rec models.TaskRecord) (Outcome, error) {
	log := f.d.Logger.WithField("task_code", rec.TaskCode)

	balance := 0.0
	if f.d.Balance != nil {
		if b, ok := f.d.Balance(); ok {
			balance = b
		}
	}

	switch f.d.Controller.Begin(rec, balance) {
	case DecisionIgnored:
		log.Debug("submit ignored, already in flight")
		return OutcomeStale, nil
	case DecisionInsufficient:
		logEvent(f.d.Events, "submit.insufficient_balance", map[string]any{"task_code": rec.TaskCode, "balance": balance})
		return OutcomeMustDeposit, f.redirectToDeposit(ctx)
	}

	logEvent(f.d.Events, "submit.started", map[string]any{"task_code": rec.TaskCode})

	if err := sleep(ctx, f.d.Clock, f.d.Timings.Processing); err != nil {
		f.d.Controller.Abandon(rec.TaskCode)
		return OutcomeStale, err
	}

	res, err := f.d.Submitter.SubmitTaskRecord(ctx, rec.TaskCode)
	if ctx.Err() != nil {
		f.d.Controller.Abandon(rec.TaskCode)
		return OutcomeStale, ctx.Err()
	}
	if err != nil {
		log.WithError(err).Warn("submit request failed")
	}

	outcome, msg := f.d.Controller.Resolve(rec.TaskCode, res, err, f.d.Clock.Now())
	switch outcome {
	case OutcomeSucceeded:
		logEvent(f.d.Events, "submit.succeeded", map[string]any{"task_code": rec.TaskCode})
		f.refresh(ctx, log)
		if err := sleep(ctx, f.d.Clock, f.d.Timings.SubmittedHold); err != nil {
			return outcome, err
		}
		f.d.Controller.Clear(rec.TaskCode)
	case OutcomeMustDeposit:
		logEvent(f.d.Events, "submit.must_deposit", map[string]any{"task_code": rec.TaskCode})
		return outcome, f.redirectToDeposit(ctx)
	case OutcomeFailed:
		logEvent(f.d.Events, "submit.failed", map[string]any{"task_code": rec.TaskCode, "message": msg})
		f.d.Notifier.Alert(msg)
	}
	return outcome, nil
}

func (f *SubmitFlow) redirectToDeposit(ctx context.Context) error {
	f.d.Notifier.Toast(InsufficientBalanceMessage)
	if err := sleep(ctx, f.d.Clock, f.d.Timings.Redirect); err != nil {
		return err
	}
	f.d.Navigator.Navigate(DepositPath)
	return nil
}

// refresh pulls authoritative state after a successful submit. Failures keep
// the previous snapshots and are only logged.
func (f *SubmitFlow) refresh(ctx context.Context, log logrus.FieldLogger) {
	if f.d.Profile != nil {
		if err := f.d.Profile.Refresh(ctx); err != nil {
			log.WithError(err).Debug("profile refresh after submit failed")
		}
	}
	if f.d.Records != nil {
		if err := f.d.Records.Refresh(ctx); err != nil {
			log.WithError(err).Debug("records refresh after submit failed")
		}
	}
}
