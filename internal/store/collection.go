package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/metrics"
	"github.com/uwscope/scope-web-sub000/internal/platform/query"
	"github.com/uwscope/scope-web-sub000/internal/service"
)

type datedEntity interface {
	model.Identified
	model.Dated
}

// upsert returns a copy of items with v replacing the entry that has the same
// id, or appended when there is none.
func upsert[T model.Identified](items []T, v T) ([]T, bool) {
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	for i := range out {
		if out[i].EntityID() == v.EntityID() {
			out[i] = v
			return out, true
		}
	}
	return append(out, v), false
}

// newestFirst sorts items in place by descending date, keeping the relative
// order of equal dates.
func newestFirst[T model.Dated](items []T) []T {
	slices.SortStableFunc(items, func(a, b T) int {
		return b.EntityDate().Compare(a.EntityDate().Time)
	})
	return items
}

// recent returns the prefix of descending-sorted items dated at or after
// cutoff. It returns nil, not an empty slice, when nothing qualifies.
func recent[T model.Dated](items []T, cutoff time.Time) []T {
	n := 0
	for n < len(items) && !items[n].EntityDate().Before(cutoff) {
		n++
	}
	if n == 0 {
		return nil
	}
	return slices.Clone(items[:n])
}

func findByID[T model.Identified](items []T, id string) (T, bool) {
	for _, it := range items {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// writeOpts describes one collection write.
type writeOpts[T model.Identified] struct {
	resource Resource
	// update is set when the entity is expected to exist already.
	update bool
	// order re-establishes the collection's ordering after a change.
	order func([]T) []T
}

// writeCollection sends one entity to the backend and folds the canonical
// answer into q. A conflict replaces the whole collection with the server's
// snapshot. An update whose id is not present locally is appended and
// reported.
func writeCollection[T model.Identified](ctx context.Context, s *PatientStore, q *query.Query[[]T], o writeOpts[T], call func(context.Context) (T, error)) (T, error) {
	var saved T
	_, err := q.Mutate(ctx, func(ctx context.Context) (query.Reducer[[]T], error) {
		v, err := call(ctx)
		if err != nil {
			ce, ok := service.AsConflict(err)
			if !ok {
				return nil, err
			}
			var current []T
			if derr := ce.Decode(&current); derr != nil {
				return nil, fmt.Errorf("%w: %v", err, derr)
			}
			s.conflictResolved(o.resource, ce)
			return func([]T) []T {
				if o.order != nil {
					return o.order(current)
				}
				return current
			}, err
		}

		saved = v
		return func(items []T) []T {
			out, found := upsert(items, v)
			if o.update && !found {
				s.assertMissing(o.resource, v.EntityID())
			}
			if o.order != nil {
				out = o.order(out)
			}
			return out
		}, nil
	})
	s.metrics.Mutation(string(o.resource), err)
	return saved, err
}

// writeSingleton overwrites a one-per-patient resource with the server's
// answer, or with the server's snapshot on conflict.
func writeSingleton[T any](ctx context.Context, s *PatientStore, q *query.Query[T], resource Resource, call func(context.Context) (T, error)) (T, error) {
	var saved T
	_, err := q.Mutate(ctx, func(ctx context.Context) (query.Reducer[T], error) {
		v, err := call(ctx)
		if err != nil {
			ce, ok := service.AsConflict(err)
			if !ok {
				return nil, err
			}
			var current T
			if derr := ce.Decode(&current); derr != nil {
				return nil, fmt.Errorf("%w: %v", err, derr)
			}
			s.conflictResolved(resource, ce)
			return func(T) T { return current }, err
		}
		saved = v
		return func(T) T { return v }, nil
	})
	s.metrics.Mutation(string(resource), err)
	return saved, err
}

func (s *PatientStore) conflictResolved(resource Resource, ce *service.ConflictError) {
	s.logger.Warn().
		Str("resource", string(resource)).
		Str("path", ce.Path).
		Msg("write conflicted, local state replaced with server snapshot")
	s.metrics.Conflict(string(resource))
}

func (s *PatientStore) assertMissing(resource Resource, id string) {
	s.logger.Warn().
		Str("resource", string(resource)).
		Str("id", id).
		Msg("updated entity was not present locally")
	s.metrics.Assertion(metrics.AssertionMissingEntity, string(resource))
}
