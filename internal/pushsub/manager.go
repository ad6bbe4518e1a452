// Package pushsub keeps the device's push subscription in step between local
// storage and the patient record on the server.
package pushsub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/rs/zerolog"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/localstore"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/service"
	"github.com/uwscope/scope-web-sub000/internal/store"
)

const resource = "pushSubscriptions"

// API is the server side of the subscription.
type API interface {
	AddPushSubscription(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, subscriptionID string) error
}

// Records is the patient store's view of the server copies.
type Records interface {
	PushSubscriptions() []model.PushSubscription
	SetPushSubscriptions(subs []model.PushSubscription)
}

var (
	_ API     = (*service.PatientService)(nil)
	_ Records = (*store.PatientStore)(nil)
)

// Manager writes the server copy first and the local copy second. A failed
// local write rolls the server add back, so the two only diverge when the
// rollback itself fails; Restore finds and repairs that case.
type Manager struct {
	api     API
	local   localstore.Store
	records Records
	logger  zerolog.Logger
	metrics *metrics.Collector
}

func New(api API, local localstore.Store, records Records, logger zerolog.Logger, m *metrics.Collector) *Manager {
	return &Manager{
		api:     api,
		local:   local,
		records: records,
		logger:  logger.With().Str("component", "pushsub").Logger(),
		metrics: m,
	}
}

// Current returns the locally stored subscription.
func (m *Manager) Current() (model.PushSubscription, bool, error) {
	var sub model.PushSubscription
	err := m.local.Get(localstore.KeyPushSubscription, &sub)
	if errors.Is(err, localstore.ErrNotFound) {
		return model.PushSubscription{}, false, nil
	}
	if err != nil {
		return model.PushSubscription{}, false, fmt.Errorf("read local subscription: %w", err)
	}
	return sub, true, nil
}

// Subscribe registers sub for this device. Subscribing the endpoint that is
// already stored and on the server is a no-op.
func (m *Manager) Subscribe(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error) {
	prev, hasPrev, err := m.Current()
	if err != nil {
		return model.PushSubscription{}, err
	}
	if hasPrev && prev.SameEndpoint(sub) && m.onServer(prev) {
		return prev, nil
	}

	sub.SubscriptionID = ""
	saved, err := m.api.AddPushSubscription(ctx, sub)
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("add push subscription: %w", err)
	}

	if err := m.local.Set(localstore.KeyPushSubscription, saved); err != nil {
		if derr := m.api.DeletePushSubscription(ctx, saved.SubscriptionID); derr != nil && !notFound(derr) {
			m.mismatch("rollback of server subscription failed", saved.SubscriptionID, derr)
		}
		return model.PushSubscription{}, fmt.Errorf("store push subscription locally: %w", err)
	}
	m.track(saved)

	// A new endpoint replaces the device's previous registration.
	if hasPrev && prev.SubscriptionID != "" && prev.SubscriptionID != saved.SubscriptionID {
		if err := m.api.DeletePushSubscription(ctx, prev.SubscriptionID); err != nil && !notFound(err) {
			m.logger.Warn().Err(err).Str("subscription_id", prev.SubscriptionID).Msg("remove replaced subscription")
		} else {
			m.untrack(prev.SubscriptionID)
		}
	}
	return saved, nil
}

// Unsubscribe removes this device's subscription from the server, then
// locally. If the server delete fails both copies are kept.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	cur, ok, err := m.Current()
	if err != nil || !ok {
		return err
	}
	if cur.SubscriptionID != "" {
		if err := m.api.DeletePushSubscription(ctx, cur.SubscriptionID); err != nil && !notFound(err) {
			return fmt.Errorf("delete push subscription: %w", err)
		}
	}
	m.untrack(cur.SubscriptionID)
	if err := m.local.Delete(localstore.KeyPushSubscription); err != nil {
		m.mismatch("local subscription outlived server delete", cur.SubscriptionID, err)
		return fmt.Errorf("delete local subscription: %w", err)
	}
	return nil
}

// Restore checks the stored subscription against the server copies loaded
// with the patient record and re-registers it when the server lost it. It
// reports whether the device has a live subscription afterwards.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	cur, ok, err := m.Current()
	if err != nil || !ok {
		return false, err
	}
	if m.onServer(cur) {
		return true, nil
	}

	m.mismatch("stored subscription missing on server", cur.SubscriptionID, nil)
	cur.SubscriptionID = ""
	saved, err := m.api.AddPushSubscription(ctx, cur)
	if err != nil {
		return false, fmt.Errorf("re-register push subscription: %w", err)
	}
	if err := m.local.Set(localstore.KeyPushSubscription, saved); err != nil {
		return false, fmt.Errorf("store push subscription locally: %w", err)
	}
	m.track(saved)
	m.logger.Info().Str("subscription_id", saved.SubscriptionID).Msg("push subscription reconciled")
	return true, nil
}

func (m *Manager) onServer(sub model.PushSubscription) bool {
	if m.records == nil {
		return true
	}
	return slices.ContainsFunc(m.records.PushSubscriptions(), func(s model.PushSubscription) bool {
		return s.SubscriptionID == sub.SubscriptionID && s.SameEndpoint(sub)
	})
}

func (m *Manager) track(sub model.PushSubscription) {
	if m.records == nil {
		return
	}
	subs := slices.DeleteFunc(m.records.PushSubscriptions(), func(s model.PushSubscription) bool {
		return s.SubscriptionID == sub.SubscriptionID
	})
	m.records.SetPushSubscriptions(append(subs, sub))
}

func (m *Manager) untrack(id string) {
	if m.records == nil || id == "" {
		return
	}
	m.records.SetPushSubscriptions(slices.DeleteFunc(m.records.PushSubscriptions(), func(s model.PushSubscription) bool {
		return s.SubscriptionID == id
	}))
}

func (m *Manager) mismatch(msg, id string, err error) {
	m.logger.Warn().Err(err).Str("resource", resource).Str("subscription_id", id).Msg(msg)
	m.metrics.Assertion(metrics.AssertionPushSubMismatch, resource)
}

func notFound(err error) bool {
	var he *service.HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}
