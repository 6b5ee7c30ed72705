package firestore

import (
	"testing"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
)

func TestNewUserRepositoryRequiresProvider(t *testing.T) {
	if _, err := NewUserRepository(nil); err == nil {
		t.Fatal("expected error without provider")
	}
}

func TestActorFromDocumentUsesSnapshotTimes(t *testing.T) {
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	doc := pfirestore.Document[userDocument]{
		ID:         "drv-1",
		Data:       userDocument{Name: "Driver", Role: " Driver ", Country: "KSA"},
		CreateTime: created,
		UpdateTime: updated,
	}
	actor := actorFromDocument(doc)
	if actor.ID != "drv-1" || actor.Role != domain.RoleDriver {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if !actor.CreatedAt.Equal(created) || !actor.UpdatedAt.Equal(updated) {
		t.Fatalf("expected snapshot times, got created=%s updated=%s", actor.CreatedAt, actor.UpdatedAt)
	}

	stored := created.Add(-24 * time.Hour)
	doc.Data.CreatedAt = stored
	doc.Data.UpdatedAt = stored
	actor = actorFromDocument(doc)
	if !actor.CreatedAt.Equal(stored) || !actor.UpdatedAt.Equal(stored) {
		t.Fatalf("stored times must win, got %+v", actor)
	}
}

func TestNewUserDocumentNormalises(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	doc := newUserDocument(domain.Actor{ID: "a1", Email: " Ops@Example.COM ", Role: "ADMIN"}, now)
	if doc.Email != "ops@example.com" || doc.Role != "admin" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if !doc.CreatedAt.Equal(now) || !doc.UpdatedAt.Equal(now) {
		t.Fatalf("expected stamped times, got %+v", doc)
	}
}
