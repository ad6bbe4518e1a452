package devserver

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

// MemoryRepository keeps documents in process. Documents are stored encoded
// so callers never share memory with the repository.
type MemoryRepository struct {
	mu        sync.Mutex
	patients  map[string][]byte
	providers map[string]model.Provider
	config    map[string]any
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:  make(map[string][]byte),
		providers: make(map[string]model.Provider),
	}
}

func (r *MemoryRepository) ListPatients(_ context.Context) ([]model.PatientSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.PatientSummary, 0, len(r.patients))
	for _, b := range r.patients {
		doc, err := decodeDocument(b)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out, nil
}

func (r *MemoryRepository) GetPatient(_ context.Context, id string) (model.PatientDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.patients[id]
	if !ok {
		return model.PatientDocument{}, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	return decodeDocument(b)
}

func (r *MemoryRepository) CreatePatient(_ context.Context, doc model.PatientDocument) error {
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[doc.PatientID]; ok {
		return fmt.Errorf("patient %s: %w", doc.PatientID, ErrExists)
	}
	r.patients[doc.PatientID] = b
	return nil
}

func (r *MemoryRepository) UpdatePatient(_ context.Context, id string, fn func(*model.PatientDocument) error) (model.PatientDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.patients[id]
	if !ok {
		return model.PatientDocument{}, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	doc, err := decodeDocument(b)
	if err != nil {
		return model.PatientDocument{}, err
	}
	if err := fn(&doc); err != nil {
		return model.PatientDocument{}, err
	}
	if b, err = encodeDocument(doc); err != nil {
		return model.PatientDocument{}, err
	}
	r.patients[id] = b
	return doc, nil
}

func (r *MemoryRepository) ListProviders(_ context.Context) ([]model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) PutProvider(_ context.Context, p model.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ProviderID] = p
	return nil
}

func (r *MemoryRepository) GetConfig(_ context.Context) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		return nil, fmt.Errorf("config: %w", ErrNotFound)
	}
	return maps.Clone(r.config), nil
}

func (r *MemoryRepository) PutConfig(_ context.Context, cfg map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = maps.Clone(cfg)
	return nil
}
