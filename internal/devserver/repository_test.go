package devserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uwscope/scope-web-sub000/internal/model"
)

func TestMemoryRepository_UpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doc := NewPatientDocument("p1", model.Profile{Name: "Ash"}, model.NewDate(time.Now()))
	if err := repo.CreatePatient(ctx, doc); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	_, err := repo.UpdatePatient(ctx, "p1", func(d *model.PatientDocument) error {
		d.Profile.Name = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, err := repo.GetPatient(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Profile.Name != "Ash" {
		t.Errorf("failed update should not be saved, name is %q", got.Profile.Name)
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	if err := repo.CreatePatient(ctx, NewPatientDocument("p1", model.Profile{Name: "Ash"}, model.NewDate(time.Now()))); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.GetPatient(ctx, "p1")
	got.Assessments[0].Assigned = true

	again, _ := repo.GetPatient(ctx, "p1")
	if again.Assessments[0].Assigned {
		t.Error("mutating a returned document must not change the stored one")
	}
}

func TestMemoryRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doc := NewPatientDocument("p1", model.Profile{Name: "Ash"}, model.NewDate(time.Now()))

	if err := repo.CreatePatient(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreatePatient(ctx, doc); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
	if _, err := repo.GetPatient(ctx, "p2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetConfig(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unset config, got %v", err)
	}
}

func TestCollectionRevisions(t *testing.T) {
	doc := &model.PatientDocument{}
	added := values.add(doc, model.Value{Name: "Family", Rev: 7})
	if added.ValueID == "" || added.Rev != 1 {
		t.Fatalf("add should assign an id and revision 1: %+v", added)
	}

	edit := added
	edit.Name = "Friends"
	saved, err := values.put(doc, added.ValueID, edit)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Rev != 2 || doc.Values[0].Name != "Friends" {
		t.Errorf("put should bump the revision: %+v", doc.Values[0])
	}

	_, err = values.put(doc, added.ValueID, edit)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict, got %v", err)
	}
	current, ok := ce.Current.([]model.Value)
	if !ok || len(current) != 1 || current[0].Rev != 2 {
		t.Errorf("conflict should carry the collection: %#v", ce.Current)
	}

	if err := values.remove(doc, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSingletonRevisions(t *testing.T) {
	doc := &model.PatientDocument{SafetyPlan: model.SafetyPlan{Rev: 3}}

	_, err := safetyPlan.put(doc, model.SafetyPlan{ReasonsForLiving: "kids", Rev: 2})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if cur := ce.Current.(model.SafetyPlan); cur.Rev != 3 {
		t.Errorf("conflict should carry the stored plan, got rev %d", cur.Rev)
	}

	saved, err := safetyPlan.put(doc, model.SafetyPlan{ReasonsForLiving: "kids", Rev: 3})
	if err != nil {
		t.Fatal(err)
	}
	if saved.Rev != 4 || doc.SafetyPlan.ReasonsForLiving != "kids" {
		t.Errorf("unexpected plan after put: %+v", doc.SafetyPlan)
	}
}
