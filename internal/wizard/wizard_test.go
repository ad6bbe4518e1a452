package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
	errs  map[string]error
}

func (r *recorder) handler(name string) func(context.Context) error {
	return func(context.Context) error {
		r.calls = append(r.calls, name)
		return r.errs[name]
	}
}

func newDialog(t *testing.T, pages []Page, opts Options) *Dialog {
	t.Helper()
	d, err := New(pages, opts)
	require.NoError(t, err)
	return d
}

func TestNew_RequiresPages(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestNext_GateBlocksAdvanceAndSubmit(t *testing.T) {
	rec := &recorder{}
	d := newDialog(t, []Page{
		{Title: "one"},
		{Title: "two", CanGoNext: func() bool { return false }, Submit: rec.handler("page2")},
		{Title: "three"},
	}, Options{Submit: rec.handler("form")})
	ctx := context.Background()

	require.NoError(t, d.Next(ctx))
	require.Equal(t, 1, d.ActivePage())

	assert.ErrorIs(t, d.Next(ctx), ErrCannotAdvance)
	assert.Equal(t, 1, d.ActivePage())
	assert.Empty(t, rec.calls)
	assert.False(t, d.State().SubmitErrorOpen)
	assert.False(t, d.State().SubmitSuccessOpen)
}

func TestNext_PlainPagesAdvanceThenClose(t *testing.T) {
	closed := 0
	d := newDialog(t, []Page{{Title: "a"}, {Title: "b"}}, Options{OnClose: func() { closed++ }})
	ctx := context.Background()

	require.NoError(t, d.Next(ctx))
	assert.Equal(t, "b", d.State().Title)
	require.NoError(t, d.Next(ctx))
	assert.False(t, d.IsOpen())
	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, d.Next(ctx), ErrClosed)
}

func TestNext_SuccessWaitsForDismissal(t *testing.T) {
	rec := &recorder{}
	d := newDialog(t, []Page{{Title: "a", Submit: rec.handler("a")}, {Title: "b"}}, Options{})
	ctx := context.Background()

	require.NoError(t, d.Next(ctx))
	st := d.State()
	assert.True(t, st.SubmitSuccessOpen)
	assert.Equal(t, 0, st.ActivePage, "success is not auto-advancing")
	assert.ErrorIs(t, d.Next(ctx), ErrBusy)

	d.DismissSuccess()
	assert.Equal(t, 1, d.ActivePage())
	assert.False(t, d.State().SubmitSuccessOpen)
	assert.Equal(t, []string{"a"}, rec.calls)
}

func TestNext_LastPageRunsPageThenFormSubmit(t *testing.T) {
	rec := &recorder{}
	closed := false
	d := newDialog(t, []Page{{Title: "only", Submit: rec.handler("page")}}, Options{
		Submit:  rec.handler("form"),
		OnClose: func() { closed = true },
	})

	require.NoError(t, d.Next(context.Background()))
	assert.Equal(t, []string{"page", "form"}, rec.calls)
	assert.True(t, d.IsOpen())

	d.DismissSuccess()
	assert.True(t, closed)
	assert.False(t, d.IsOpen())
}

func TestNext_ErrorShortCircuitsAndRetries(t *testing.T) {
	boom := errors.New("backend down")
	rec := &recorder{errs: map[string]error{"page": boom}}
	d := newDialog(t, []Page{{Title: "first"}, {Title: "last", Submit: rec.handler("page")}}, Options{Submit: rec.handler("form")})
	ctx := context.Background()

	require.NoError(t, d.Next(ctx))
	err := d.Next(ctx)
	require.ErrorIs(t, err, boom)

	st := d.State()
	assert.True(t, st.SubmitErrorOpen)
	assert.False(t, st.SubmitSuccessOpen)
	assert.False(t, st.Loading)
	assert.Equal(t, 1, st.ActivePage, "stays on the failing page")
	assert.ErrorIs(t, st.LastError, boom)
	assert.Equal(t, []string{"page"}, rec.calls, "form submit skipped after page failure")

	delete(rec.errs, "page")
	require.NoError(t, d.Retry(ctx))
	st = d.State()
	assert.False(t, st.SubmitErrorOpen)
	assert.True(t, st.SubmitSuccessOpen)
	assert.Nil(t, st.LastError)
	assert.Equal(t, []string{"page", "page", "form"}, rec.calls)
}

func TestDismissError(t *testing.T) {
	rec := &recorder{errs: map[string]error{"a": errors.New("x")}}
	d := newDialog(t, []Page{{Title: "a", Submit: rec.handler("a")}}, Options{})

	require.Error(t, d.Next(context.Background()))
	d.DismissError()
	assert.False(t, d.State().SubmitErrorOpen)
	assert.ErrorIs(t, d.Retry(context.Background()), ErrBusy, "nothing to retry")
}

func TestLoadingDuringSubmit(t *testing.T) {
	var d *Dialog
	var sawLoading, sawBack bool
	d = newDialog(t, []Page{{Title: "a"}, {Title: "b", Submit: func(context.Context) error {
		st := d.State()
		sawLoading = st.Loading
		sawBack = d.CanGoBack()
		d.Close()
		return nil
	}}}, Options{CanClose: func() bool { return true }})
	ctx := context.Background()

	require.NoError(t, d.Next(ctx))
	require.NoError(t, d.Next(ctx))
	assert.True(t, sawLoading)
	assert.False(t, sawBack)
	assert.True(t, d.IsOpen(), "close is ignored while submitting")
}

func TestCanGoBack(t *testing.T) {
	noop := func(context.Context) error { return nil }
	d := newDialog(t, []Page{{Title: "a"}, {Title: "b"}, {Title: "c", Submit: noop}}, Options{})
	ctx := context.Background()

	assert.False(t, d.CanGoBack(), "first page")
	assert.False(t, d.Back())

	require.NoError(t, d.Next(ctx))
	assert.True(t, d.CanGoBack(), "idle, past first page, no submit handler")
	assert.True(t, d.Back())
	assert.Equal(t, 0, d.ActivePage())

	require.NoError(t, d.Next(ctx))
	require.NoError(t, d.Next(ctx))
	assert.Equal(t, 2, d.ActivePage())
	assert.False(t, d.CanGoBack(), "pages with a submit handler are one-way")
}

func TestClose_Confirmation(t *testing.T) {
	closed := 0
	d := newDialog(t, []Page{{Title: "a"}}, Options{OnClose: func() { closed++ }})

	d.Close()
	assert.True(t, d.State().CloseConfirmOpen)
	assert.True(t, d.IsOpen())

	d.CancelClose()
	assert.False(t, d.State().CloseConfirmOpen)
	assert.True(t, d.IsOpen())

	d.Close()
	d.ConfirmClose()
	assert.False(t, d.IsOpen())
	assert.Equal(t, 1, closed)

	d.ConfirmClose()
	assert.Equal(t, 1, closed, "confirm without a prompt does nothing")
}

func TestClose_Closable(t *testing.T) {
	dirty := false
	d := newDialog(t, []Page{{Title: "a"}}, Options{CanClose: func() bool { return !dirty }})

	d.Close()
	assert.False(t, d.IsOpen())

	d.Reopen()
	dirty = true
	d.Close()
	assert.True(t, d.State().CloseConfirmOpen)
}

func TestTransientFlagsExclusive(t *testing.T) {
	rec := &recorder{}
	d := newDialog(t, []Page{{Title: "a", Submit: rec.handler("a")}, {Title: "b"}}, Options{})

	require.NoError(t, d.Next(context.Background()))
	d.Close()
	st := d.State()
	assert.True(t, st.CloseConfirmOpen)
	assert.False(t, st.SubmitSuccessOpen)
}

func TestNotifiesListeners(t *testing.T) {
	d := newDialog(t, []Page{{Title: "a"}, {Title: "b"}}, Options{})
	n := 0
	d.Subscribe(func() { n++ })

	require.NoError(t, d.Next(context.Background()))
	d.Back()
	assert.Equal(t, 2, n)
}
