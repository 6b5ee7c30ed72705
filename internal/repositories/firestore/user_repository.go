package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
)

const userCollection = "users"

// UserRepository loads actor profiles from the users collection.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed actor repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection)
	return &UserRepository{base: base}, nil
}

// FindByID loads the actor by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.Actor, error) {
	if r == nil || r.base == nil {
		return domain.Actor{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.Actor{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.Actor{}, err
	}

	return actorFromDocument(doc), nil
}

// actorFromDocument falls back to the snapshot times for profiles written without timestamps.
func actorFromDocument(doc pfirestore.Document[userDocument]) domain.Actor {
	actor := doc.Data.toDomain(doc.ID)
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = doc.CreateTime
	}
	if actor.UpdatedAt.IsZero() {
		actor.UpdatedAt = doc.UpdateTime
	}
	return actor
}

// Upsert writes the actor profile, stamping timestamps.
func (r *UserRepository) Upsert(ctx context.Context, actor domain.Actor) error {
	if r == nil || r.base == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(actor.ID) == "" {
		return errors.New("user id is required")
	}
	return r.base.Set(ctx, actor.ID, newUserDocument(actor, time.Now().UTC()))
}

type userDocument struct {
	UID             string    `firestore:"uid"`
	Name            string    `firestore:"name"`
	Email           string    `firestore:"email"`
	Phone           string    `firestore:"phone"`
	Role            string    `firestore:"role"`
	CreatedBy       string    `firestore:"createdBy,omitempty"`
	Country         string    `firestore:"country,omitempty"`
	City            string    `firestore:"city,omitempty"`
	CanCreateOrders bool      `firestore:"canCreateOrders"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func newUserDocument(actor domain.Actor, now time.Time) userDocument {
	doc := userDocument{
		UID:             actor.ID,
		Name:            strings.TrimSpace(actor.Name),
		Email:           strings.ToLower(strings.TrimSpace(actor.Email)),
		Phone:           strings.TrimSpace(actor.Phone),
		Role:            strings.ToLower(strings.TrimSpace(string(actor.Role))),
		CreatedBy:       strings.TrimSpace(actor.CreatedBy),
		Country:         strings.TrimSpace(actor.Country),
		City:            strings.TrimSpace(actor.City),
		CanCreateOrders: actor.CanCreateOrders,
		CreatedAt:       actor.CreatedAt.UTC(),
		UpdatedAt:       now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

func (d userDocument) toDomain(id string) domain.Actor {
	return domain.Actor{
		ID:              id,
		Name:            d.Name,
		Email:           strings.TrimSpace(d.Email),
		Phone:           strings.TrimSpace(d.Phone),
		Role:            domain.Role(strings.ToLower(strings.TrimSpace(d.Role))),
		CreatedBy:       strings.TrimSpace(d.CreatedBy),
		Country:         d.Country,
		City:            d.City,
		CanCreateOrders: d.CanCreateOrders,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
