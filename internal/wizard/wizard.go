// Package wizard drives a multi-page form dialog: per-page forward gating,
// page and form submit handlers, result toasts, and guarded closing.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/platform/observe"
)

var (
	// ErrCannotAdvance is returned by Next when the active page's gate is closed.
	ErrCannotAdvance = errors.New("wizard: page is not complete")
	// ErrBusy is returned while a submit is running or a toast or
	// confirmation is waiting for the user.
	ErrBusy   = errors.New("wizard: waiting on the user or a submit")
	ErrClosed = errors.New("wizard: dialog is closed")
)

type Page struct {
	Title string
	// CanGoNext gates forward navigation. Nil means always ready.
	CanGoNext func() bool
	// Submit runs before leaving the page. A page with a submit handler is a
	// one-way gate: Back is disabled on it.
	Submit func(ctx context.Context) error
}

type Options struct {
	// Submit runs when leaving the last page, after that page's own handler.
	Submit func(ctx context.Context) error
	// CanClose reports whether closing may skip the confirmation prompt.
	// Nil means the dialog always asks.
	CanClose func() bool
	OnClose  func()
	Logger   zerolog.Logger
}

// State is a snapshot for rendering.
type State struct {
	ActivePage        int
	PageCount         int
	Title             string
	Open              bool
	Loading           bool
	CloseConfirmOpen  bool
	SubmitErrorOpen   bool
	SubmitSuccessOpen bool
	LastError         error
}

// Dialog is the wizard controller. Listeners on the embedded Subject hear
// every state change.
type Dialog struct {
	observe.Subject

	pages  []Page
	opts   Options
	logger zerolog.Logger

	mu            sync.Mutex
	active        int
	open          bool
	loading       bool
	closeConfirm  bool
	submitError   bool
	submitSuccess bool
	lastErr       error
}

func New(pages []Page, opts Options) (*Dialog, error) {
	if len(pages) == 0 {
		return nil, errors.New("wizard: at least one page is required")
	}
	return &Dialog{
		pages:  pages,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "wizard").Logger(),
		open:   true,
	}, nil
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		ActivePage:        d.active,
		PageCount:         len(d.pages),
		Title:             d.pages[d.active].Title,
		Open:              d.open,
		Loading:           d.loading,
		CloseConfirmOpen:  d.closeConfirm,
		SubmitErrorOpen:   d.submitError,
		SubmitSuccessOpen: d.submitSuccess,
		LastError:         d.lastErr,
	}
}

func (d *Dialog) ActivePage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Reopen shows the dialog again from the first page.
func (d *Dialog) Reopen() {
	d.mu.Lock()
	d.active = 0
	d.open = true
	d.loading = false
	d.clearToasts()
	d.lastErr = nil
	d.mu.Unlock()
	d.Notify()
}

// idle reports whether the dialog accepts navigation. Callers hold d.mu.
func (d *Dialog) idle() bool {
	return !d.loading && !d.closeConfirm && !d.submitError && !d.submitSuccess
}

func (d *Dialog) clearToasts() {
	d.closeConfirm = false
	d.submitError = false
	d.submitSuccess = false
}

func (d *Dialog) last() bool { return d.active == len(d.pages)-1 }

// Next moves forward. When the active page, or the form on its last page,
// has submit handlers they run in order, stopping at the first failure, and
// the outcome opens the error or success toast. Without handlers the dialog
// advances, or closes on the last page.
func (d *Dialog) Next(ctx context.Context) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrClosed
	}
	if !d.idle() {
		d.mu.Unlock()
		return ErrBusy
	}
	page := d.pages[d.active]
	if page.CanGoNext != nil && !page.CanGoNext() {
		d.mu.Unlock()
		return ErrCannotAdvance
	}

	var handlers []func(context.Context) error
	if page.Submit != nil {
		handlers = append(handlers, page.Submit)
	}
	if d.last() && d.opts.Submit != nil {
		handlers = append(handlers, d.opts.Submit)
	}

	if len(handlers) == 0 {
		if d.last() {
			d.mu.Unlock()
			d.close()
			return nil
		}
		d.active++
		d.mu.Unlock()
		d.Notify()
		return nil
	}

	d.loading = true
	active := d.active
	d.mu.Unlock()
	d.Notify()

	var err error
	for _, h := range handlers {
		if err = h(ctx); err != nil {
			break
		}
	}

	d.mu.Lock()
	d.loading = false
	d.clearToasts()
	if err != nil {
		d.submitError = true
		d.lastErr = err
	} else {
		d.submitSuccess = true
		d.lastErr = nil
	}
	d.mu.Unlock()
	d.Notify()

	if err != nil {
		d.logger.Warn().Err(err).Int("page", active).Msg("submit failed")
		return fmt.Errorf("submit page %d: %w", active, err)
	}
	return nil
}

// DismissSuccess closes the success toast and only then advances, or
// closes the dialog if the submit was on the last page.
func (d *Dialog) DismissSuccess() {
	d.mu.Lock()
	if !d.submitSuccess {
		d.mu.Unlock()
		return
	}
	d.submitSuccess = false
	if d.last() {
		d.mu.Unlock()
		d.close()
		return
	}
	d.active++
	d.mu.Unlock()
	d.Notify()
}

// Retry is the error toast's action: it dismisses the toast and submits the
// same page again. Page input is untouched by a failure.
func (d *Dialog) Retry(ctx context.Context) error {
	d.mu.Lock()
	if !d.submitError {
		d.mu.Unlock()
		return ErrBusy
	}
	d.submitError = false
	d.mu.Unlock()
	return d.Next(ctx)
}

// DismissError closes the error toast and stays on the page.
func (d *Dialog) DismissError() {
	d.mu.Lock()
	changed := d.submitError
	d.submitError = false
	d.mu.Unlock()
	if changed {
		d.Notify()
	}
}

// CanGoBack is true when idle, past the first page, and on a page without
// its own submit handler.
func (d *Dialog) CanGoBack() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canGoBack()
}

func (d *Dialog) canGoBack() bool {
	return d.open && d.idle() && d.active > 0 && d.pages[d.active].Submit == nil
}

func (d *Dialog) Back() bool {
	d.mu.Lock()
	if !d.canGoBack() {
		d.mu.Unlock()
		return false
	}
	d.active--
	d.mu.Unlock()
	d.Notify()
	return true
}

// Close closes immediately when the form allows it and otherwise opens the
// confirmation prompt. It is ignored while a submit runs.
func (d *Dialog) Close() {
	d.mu.Lock()
	if !d.open || d.loading {
		d.mu.Unlock()
		return
	}
	if d.opts.CanClose != nil && d.opts.CanClose() {
		d.mu.Unlock()
		d.close()
		return
	}
	d.clearToasts()
	d.closeConfirm = true
	d.mu.Unlock()
	d.Notify()
}

func (d *Dialog) ConfirmClose() {
	d.mu.Lock()
	confirmed := d.closeConfirm
	d.closeConfirm = false
	d.mu.Unlock()
	if confirmed {
		d.close()
	}
}

func (d *Dialog) CancelClose() {
	d.mu.Lock()
	changed := d.closeConfirm
	d.closeConfirm = false
	d.mu.Unlock()
	if changed {
		d.Notify()
	}
}

func (d *Dialog) close() {
	d.mu.Lock()
	d.open = false
	d.clearToasts()
	d.mu.Unlock()
	if d.opts.OnClose != nil {
		d.opts.OnClose()
	}
	d.Notify()
}
