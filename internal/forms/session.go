package forms

import (
	"context"
	"errors"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/wizard"
)

// SessionForm records a new care-management session or edits an existing
// one. Pages: session information, treatment, referrals and notes.
type SessionForm struct {
	base
	w       SessionWriter
	session model.Session
	isNew   bool
	saved   *model.Session
}

func NewSessionForm(w SessionWriter, existing *model.Session, opts Options) *SessionForm {
	f := &SessionForm{w: w}
	if existing != nil {
		f.session = *existing
	} else {
		f.isNew = true
		f.session = model.Session{
			Date:        model.NewDate(opts.now()),
			SessionType: model.SessionTypeInPerson,
		}
	}
	f.session = f.session.Normalized()

	f.dialog = mustDialog([]wizard.Page{
		{Title: "Session information", CanGoNext: f.gate(f.infoComplete)},
		{Title: "Treatment"},
		{Title: "Referrals and notes"},
	}, f.wizardOptions(opts, f.submit))
	return f
}

// Edit applies fn to the working copy.
func (f *SessionForm) Edit(fn func(s *model.Session)) {
	f.mu.Lock()
	fn(&f.session)
	f.touch()
	f.mu.Unlock()
}

func (f *SessionForm) Value() model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// Saved returns the persisted session after a successful submit.
func (f *SessionForm) Saved() (model.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return model.Session{}, false
	}
	return *f.saved, true
}

func (f *SessionForm) infoComplete() bool {
	s := f.session
	return !s.Date.IsZero() && s.SessionType != "" && s.BillableMinutes >= 0
}

func (f *SessionForm) submit(ctx context.Context) error {
	f.mu.Lock()
	s := f.session.Normalized()
	isNew := f.isNew
	f.mu.Unlock()

	if s.BillableMinutes < 0 {
		return errors.New("billable minutes cannot be negative")
	}

	var (
		out model.Session
		err error
	)
	if isNew {
		out, err = f.w.AddSession(ctx, model.NewDraft(s))
	} else {
		out, err = f.w.UpdateSession(ctx, s)
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.saved = &out
	f.session = out
	f.isNew = false
	f.dirty = false
	f.mu.Unlock()
	return nil
}
