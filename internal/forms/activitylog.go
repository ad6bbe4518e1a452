package forms

import (
	"context"
	"errors"
	"fmt"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/wizard"
)

// ActivityLogForm records how a scheduled activity went. Pages: outcome,
// ratings (only required when the activity was done), comment.
type ActivityLogForm struct {
	base
	w     ActivityLogWriter
	log   model.ActivityLog
	saved *model.ActivityLog
	opts  Options
}

func NewActivityLogForm(w ActivityLogWriter, scheduled model.ScheduledActivity, opts Options) *ActivityLogForm {
	f := &ActivityLogForm{
		w:    w,
		log:  model.ActivityLog{ScheduledActivityID: scheduled.ScheduledActivityID},
		opts: opts,
	}
	title := "Activity"
	if name := scheduled.DataSnapshot.Activity.Name; name != "" {
		title = name
	}
	f.dialog = mustDialog([]wizard.Page{
		{Title: title, CanGoNext: f.gate(f.outcomeComplete)},
		{Title: "How did it feel?", CanGoNext: f.gate(f.ratingsComplete)},
		{Title: "Comment"},
	}, f.wizardOptions(opts, f.submit))
	return f
}

// SetOutcome records Yes, No or SomethingElse; alternative describes what
// was done instead.
func (f *ActivityLogForm) SetOutcome(success, alternative string) error {
	switch success {
	case model.SuccessYes, model.SuccessNo, model.SuccessSomethingElse:
	default:
		return fmt.Errorf("unknown outcome %q", success)
	}
	f.mu.Lock()
	f.log.Success = success
	f.log.Alternative = alternative
	f.touch()
	f.mu.Unlock()
	return nil
}

// Rate sets pleasure and accomplishment on the 0-10 scale.
func (f *ActivityLogForm) Rate(pleasure, accomplishment int) error {
	if pleasure < 0 || pleasure > 10 || accomplishment < 0 || accomplishment > 10 {
		return errors.New("ratings must be between 0 and 10")
	}
	f.mu.Lock()
	f.log.Pleasure = &pleasure
	f.log.Accomplishment = &accomplishment
	f.touch()
	f.mu.Unlock()
	return nil
}

func (f *ActivityLogForm) SetComment(c string) {
	f.mu.Lock()
	f.log.Comment = c
	f.touch()
	f.mu.Unlock()
}

func (f *ActivityLogForm) Saved() (model.ActivityLog, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return model.ActivityLog{}, false
	}
	return *f.saved, true
}

func (f *ActivityLogForm) outcomeComplete() bool {
	switch f.log.Success {
	case model.SuccessYes, model.SuccessNo:
		return true
	case model.SuccessSomethingElse:
		return f.log.Alternative != ""
	}
	return false
}

func (f *ActivityLogForm) ratingsComplete() bool {
	if f.log.Success != model.SuccessYes {
		return true
	}
	return f.log.Pleasure != nil && f.log.Accomplishment != nil
}

func (f *ActivityLogForm) submit(ctx context.Context) error {
	f.mu.Lock()
	log := f.log
	f.mu.Unlock()
	log.RecordedDate = model.NewDate(f.opts.now())

	out, err := f.w.AddActivityLog(ctx, model.NewDraft(log))
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.saved = &out
	f.dirty = false
	f.mu.Unlock()
	return nil
}
