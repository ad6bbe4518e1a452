package forms

import (
	"context"
	"fmt"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/wizard"
)

// CheckIn walks a patient or provider through a scored instrument: one page
// per question, then a comment page that submits the log.
type CheckIn struct {
	base
	w          AssessmentLogWriter
	instrument model.Instrument
	log        model.AssessmentLog
	saved      *model.AssessmentLog
	now        func() model.Date
}

// Submitter says who is recording the check-in.
type Submitter struct {
	Patient    bool
	ProviderID string
}

func NewCheckIn(w AssessmentLogWriter, assessmentID string, by Submitter, opts Options) (*CheckIn, error) {
	in, ok := model.Instruments[assessmentID]
	if !ok {
		return nil, fmt.Errorf("no questionnaire for assessment %q", assessmentID)
	}
	f := &CheckIn{
		w:          w,
		instrument: in,
		log: model.AssessmentLog{
			AssessmentID:          assessmentID,
			PointValues:           make(map[string]int, len(in.Questions)),
			PatientSubmitted:      by.Patient,
			SubmittedByProviderID: by.ProviderID,
		},
		now: func() model.Date { return model.NewDate(opts.now()) },
	}

	pages := make([]wizard.Page, 0, len(in.Questions)+1)
	for _, q := range in.Questions {
		pages = append(pages, wizard.Page{Title: q, CanGoNext: f.gate(func() bool { return f.answered(q) })})
	}
	pages = append(pages, wizard.Page{Title: "Comment"})
	f.dialog = mustDialog(pages, f.wizardOptions(opts, f.submit))
	return f, nil
}

func (f *CheckIn) Instrument() model.Instrument { return f.instrument }

// Answer records the points for one question.
func (f *CheckIn) Answer(question string, points int) error {
	if !f.known(question) {
		return fmt.Errorf("%s has no question %q", f.instrument.Name, question)
	}
	if points < 0 || points > f.instrument.MaxPoint {
		return fmt.Errorf("%s: points must be between 0 and %d", question, f.instrument.MaxPoint)
	}
	f.mu.Lock()
	f.log.PointValues[question] = points
	f.touch()
	f.mu.Unlock()
	return nil
}

func (f *CheckIn) SetComment(c string) {
	f.mu.Lock()
	f.log.Comment = c
	f.touch()
	f.mu.Unlock()
}

// Total is the running score of the answers so far.
func (f *CheckIn) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, _ := f.log.Total()
	return total
}

func (f *CheckIn) Saved() (model.AssessmentLog, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return model.AssessmentLog{}, false
	}
	return *f.saved, true
}

func (f *CheckIn) known(q string) bool {
	for _, k := range f.instrument.Questions {
		if k == q {
			return true
		}
	}
	return false
}

func (f *CheckIn) answered(q string) bool {
	_, ok := f.log.PointValues[q]
	return ok
}

func (f *CheckIn) submit(ctx context.Context) error {
	f.mu.Lock()
	log := f.log
	log.PointValues = make(map[string]int, len(f.log.PointValues))
	for k, v := range f.log.PointValues {
		log.PointValues[k] = v
	}
	f.mu.Unlock()

	if !log.Complete(f.instrument) {
		return fmt.Errorf("%s is incomplete", f.instrument.Name)
	}
	log.RecordedDate = f.now()

	out, err := f.w.AddAssessmentLog(ctx, model.NewDraft(log))
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.saved = &out
	f.dirty = false
	f.mu.Unlock()
	return nil
}
