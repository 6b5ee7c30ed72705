package services

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories"
)

// maxWorkspaceDepth bounds the createdBy walk so a cyclic profile chain cannot loop forever.
const maxWorkspaceDepth = 8

// loadActor fetches the caller's profile. Unknown callers are treated as unauthorised.
func loadActor(ctx context.Context, actors repositories.ActorRepository, actorID string) (Actor, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Actor{}, fmt.Errorf("%w: actor is required", ErrAuthorization)
	}
	actor, err := actors.FindByID(ctx, actorID)
	if err != nil {
		if isNotFound(err) {
			return Actor{}, fmt.Errorf("%w: unknown actor %s", ErrAuthorization, actorID)
		}
		return Actor{}, mapRepositoryError(ErrActorNotFound, err)
	}
	return actor, nil
}

// resolveWorkspace returns the id of the user-role actor owning actor's workspace. Admins and
// actors without an owner in their chain resolve to "".
func resolveWorkspace(ctx context.Context, actors repositories.ActorRepository, actor Actor) (string, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		return "", nil
	case domain.RoleUser:
		return actor.ID, nil
	}

	current := actor
	seen := map[string]struct{}{actor.ID: {}}
	for range maxWorkspaceDepth {
		parentID := strings.TrimSpace(current.CreatedBy)
		if parentID == "" {
			return "", nil
		}
		if _, loop := seen[parentID]; loop {
			return "", nil
		}
		seen[parentID] = struct{}{}

		parent, err := actors.FindByID(ctx, parentID)
		if err != nil {
			if isNotFound(err) {
				return "", nil
			}
			return "", mapRepositoryError(ErrActorNotFound, err)
		}
		if parent.Role == domain.RoleUser {
			return parent.ID, nil
		}
		current = parent
	}
	return "", nil
}
