package forms

import (
	"context"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/wizard"
)

// SafetyPlanForm edits the plan one section per page and saves it when the
// last page is left.
type SafetyPlanForm struct {
	base
	w     SafetyPlanWriter
	plan  model.SafetyPlan
	saved *model.SafetyPlan
}

var safetyPlanSections = []string{
	"Reasons for living",
	"Warning signs",
	"Coping strategies",
	"Social distractions",
	"Safe environment",
	"People I can ask for help",
	"Professionals",
	"Urgent services",
}

func NewSafetyPlanForm(w SafetyPlanWriter, current model.SafetyPlan, opts Options) *SafetyPlanForm {
	f := &SafetyPlanForm{w: w, plan: current}
	pages := make([]wizard.Page, len(safetyPlanSections))
	for i, title := range safetyPlanSections {
		pages[i] = wizard.Page{Title: title}
	}
	f.dialog = mustDialog(pages, f.wizardOptions(opts, f.submit))
	return f
}

// Edit applies fn to the working copy of the plan.
func (f *SafetyPlanForm) Edit(fn func(p *model.SafetyPlan) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.plan
	if err := fn(&next); err != nil {
		return err
	}
	f.plan = next
	f.touch()
	return nil
}

func (f *SafetyPlanForm) Value() model.SafetyPlan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plan
}

func (f *SafetyPlanForm) Saved() (model.SafetyPlan, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return model.SafetyPlan{}, false
	}
	return *f.saved, true
}

func (f *SafetyPlanForm) submit(ctx context.Context) error {
	f.mu.Lock()
	plan := f.plan
	f.mu.Unlock()

	out, err := f.w.UpdateSafetyPlan(ctx, plan)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.saved = &out
	f.plan = out
	f.dirty = false
	f.mu.Unlock()
	return nil
}
