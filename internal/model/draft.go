package model

import (
	"errors"

	"github.com/google/uuid"
)

// ErrDraftEntity is returned when an entity that has never been saved is passed
// to an update path.
var ErrDraftEntity = errors.New("entity has no server id")

// Draft is an entity that has not been assigned a server id yet. TempID lets
// callers correlate the draft with the persisted entity returned on save.
type Draft[T any] struct {
	TempID uuid.UUID
	Value  T
}

func NewDraft[T any](v T) Draft[T] {
	return Draft[T]{TempID: uuid.New(), Value: v}
}

// Identified is implemented by every persisted collection entity.
type Identified interface {
	EntityID() string
}

// Dated is implemented by entities that participate in chronological views.
type Dated interface {
	EntityDate() Date
}
