// Package devserver is a development backend for the SCOPE resource API. It
// stores each patient as one document and enforces per-entity revisions.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// Repository persists patient documents, the provider directory and the
// application configuration.
type Repository interface {
	ListPatients(ctx context.Context) ([]model.PatientSummary, error)
	GetPatient(ctx context.Context, id string) (model.PatientDocument, error)
	CreatePatient(ctx context.Context, doc model.PatientDocument) error
	// UpdatePatient applies fn to the stored document and saves the result
	// atomically. An error from fn discards the change.
	UpdatePatient(ctx context.Context, id string, fn func(*model.PatientDocument) error) (model.PatientDocument, error)

	ListProviders(ctx context.Context) ([]model.Provider, error)
	PutProvider(ctx context.Context, p model.Provider) error

	GetConfig(ctx context.Context) (map[string]any, error)
	PutConfig(ctx context.Context, cfg map[string]any) error
}

func encodeDocument(doc model.PatientDocument) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode patient %s: %w", doc.PatientID, err)
	}
	return b, nil
}

func decodeDocument(b []byte) (model.PatientDocument, error) {
	var doc model.PatientDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return model.PatientDocument{}, fmt.Errorf("decode patient: %w", err)
	}
	return doc, nil
}
