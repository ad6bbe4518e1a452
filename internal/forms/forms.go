// Package forms binds the wizard to patient-record edits: each constructor
// returns a dialog whose pages gate on the form's own input and whose
// submit writes through the patient store.
package forms

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/store"
	"github.com/uwscope/scope-web-sub000/internal/wizard"
)

type SessionWriter interface {
	AddSession(ctx context.Context, d model.Draft[model.Session]) (model.Session, error)
	UpdateSession(ctx context.Context, s model.Session) (model.Session, error)
}

type AssessmentLogWriter interface {
	AddAssessmentLog(ctx context.Context, d model.Draft[model.AssessmentLog]) (model.AssessmentLog, error)
}

type ActivityLogWriter interface {
	AddActivityLog(ctx context.Context, d model.Draft[model.ActivityLog]) (model.ActivityLog, error)
}

type SafetyPlanWriter interface {
	UpdateSafetyPlan(ctx context.Context, p model.SafetyPlan) (model.SafetyPlan, error)
}

type MoodLogWriter interface {
	AddMoodLog(ctx context.Context, d model.Draft[model.MoodLog]) (model.MoodLog, error)
}

var (
	_ SessionWriter       = (*store.PatientStore)(nil)
	_ AssessmentLogWriter = (*store.PatientStore)(nil)
	_ ActivityLogWriter   = (*store.PatientStore)(nil)
	_ SafetyPlanWriter    = (*store.PatientStore)(nil)
	_ MoodLogWriter       = (*store.PatientStore)(nil)
)

// Options are shared by every form.
type Options struct {
	Now     func() time.Time
	Logger  zerolog.Logger
	OnClose func()
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// base carries the edit lock and dirty flag every form shares. A clean form
// closes without confirmation.
type base struct {
	mu     sync.Mutex
	dirty  bool
	dialog *wizard.Dialog
}

func (b *base) Dialog() *wizard.Dialog { return b.dialog }

func (b *base) touch() {
	b.dirty = true
}

func (b *base) clean() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.dirty
}

func (b *base) wizardOptions(opts Options, submit func(context.Context) error) wizard.Options {
	return wizard.Options{
		Submit:   submit,
		CanClose: b.clean,
		OnClose:  opts.OnClose,
		Logger:   opts.Logger,
	}
}

// gate builds a CanGoNext that evaluates pred under the form lock.
func (b *base) gate(pred func() bool) func() bool {
	return func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return pred()
	}
}

func mustDialog(pages []wizard.Page, opts wizard.Options) *wizard.Dialog {
	d, err := wizard.New(pages, opts)
	if err != nil {
		// Every form declares at least one page.
		panic(err)
	}
	return d
}
