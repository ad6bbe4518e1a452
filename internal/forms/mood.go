package forms

import (
	"context"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/wizard"
)

// MoodForm is the single-page mood check-in.
type MoodForm struct {
	base
	w     MoodLogWriter
	log   model.MoodLog
	saved *model.MoodLog
	opts  Options
}

func NewMoodForm(w MoodLogWriter, opts Options) *MoodForm {
	f := &MoodForm{w: w, opts: opts}
	f.dialog = mustDialog([]wizard.Page{
		{Title: "How are you feeling?", CanGoNext: f.gate(func() bool { return f.log.Validate() == nil })},
	}, f.wizardOptions(opts, f.submit))
	return f
}

func (f *MoodForm) SetMood(mood int, comment string) error {
	probe := model.MoodLog{Mood: mood}
	if err := probe.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	f.log.Mood = mood
	f.log.Comment = comment
	f.touch()
	f.mu.Unlock()
	return nil
}

func (f *MoodForm) Saved() (model.MoodLog, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return model.MoodLog{}, false
	}
	return *f.saved, true
}

func (f *MoodForm) submit(ctx context.Context) error {
	f.mu.Lock()
	log := f.log
	f.mu.Unlock()
	log.RecordedDate = model.NewDate(f.opts.now())

	out, err := f.w.AddMoodLog(ctx, model.NewDraft(log))
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.saved = &out
	f.dirty = false
	f.mu.Unlock()
	return nil
}
