package services

import (
	"errors"
	"fmt"

	"github.com/codfleet/api/internal/repositories"
)

// Error taxonomy shared by every service. Handlers map these onto HTTP status codes.
var (
	ErrValidation        = errors.New("validation failed")
	ErrAuthorization     = errors.New("not authorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDependencyFailure = errors.New("dependency failure")
)

// Operation specific errors. Each wraps one taxonomy member so errors.Is matches both.
var (
	ErrOrderInvalidInput         = fmt.Errorf("order: invalid input: %w", ErrValidation)
	ErrOrderNotFound             = fmt.Errorf("order: %w", ErrNotFound)
	ErrOrderTerminal             = fmt.Errorf("order: shipment status is terminal: %w", ErrConflict)
	ErrOrderAlreadyAssigned      = fmt.Errorf("order: already assigned to another driver: %w", ErrConflict)
	ErrOrderNotShipped           = fmt.Errorf("order: not shipped: %w", ErrConflict)
	ErrOrderAlreadySettled       = fmt.Errorf("order: already settled: %w", ErrConflict)
	ErrProductUnavailable        = fmt.Errorf("order: product unavailable in country: %w", ErrValidation)
	ErrCityMismatch              = fmt.Errorf("order: city mismatch: %w", ErrConflict)
	ErrCountryMismatch           = fmt.Errorf("country mismatch: %w", ErrValidation)
	ErrSubmissionInProgress      = fmt.Errorf("order: identical submission in progress: %w", ErrConflict)
	ErrInventoryInvalidInput     = fmt.Errorf("inventory: invalid input: %w", ErrValidation)
	ErrProductNotFound           = fmt.Errorf("inventory: product %w", ErrNotFound)
	ErrRemittanceInvalidInput    = fmt.Errorf("remittance: invalid input: %w", ErrValidation)
	ErrRemittanceNotFound        = fmt.Errorf("remittance: %w", ErrNotFound)
	ErrRemittanceAlreadyAccepted = fmt.Errorf("remittance: already accepted: %w", ErrConflict)
	ErrFinanceInvalidInput       = fmt.Errorf("finance: invalid input: %w", ErrValidation)
	ErrActorNotFound             = fmt.Errorf("actor: %w", ErrNotFound)
	ErrInvoiceSequenceExhausted  = fmt.Errorf("invoice: sequence exhausted: %w", ErrDependencyFailure)
)

// mapRepositoryError translates repository categorisation into the service taxonomy.
// notFound is returned (wrapped) for missing documents so callers keep their own context.
func mapRepositoryError(notFound error, err error) error {
	if err == nil {
		return nil
	}
	if isServiceError(err) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			if notFound == nil {
				notFound = ErrNotFound
			}
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: repository unavailable: %v", ErrDependencyFailure, err)
		}
	}

	if errors.Is(err, repositories.ErrFilterTooBroad) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var seqErr *repositories.SequenceError
	if errors.As(err, &seqErr) {
		return fmt.Errorf("%w: %v", ErrDependencyFailure, err)
	}

	return err
}

func isServiceError(err error) bool {
	for _, target := range []error{ErrValidation, ErrAuthorization, ErrNotFound, ErrConflict, ErrDependencyFailure} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
