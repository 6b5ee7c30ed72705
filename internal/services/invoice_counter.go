package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codfleet/api/internal/repositories"
)

const invoiceSequenceCeiling = 999999

type InvoiceCounterDeps struct {
	Sequences repositories.SequenceRepository
	// Ceiling caps the yearly sequence. Defaults to the largest six digit value.
	Ceiling int64
}

type invoiceCounter struct {
	sequences repositories.SequenceRepository
	ceiling   int64
}

func NewInvoiceCounter(deps InvoiceCounterDeps) (InvoiceCounter, error) {
	if deps.Sequences == nil {
		return nil, errors.New("invoice counter: sequence repository is required")
	}
	ceiling := deps.Ceiling
	if ceiling <= 0 {
		ceiling = invoiceSequenceCeiling
	}
	return &invoiceCounter{sequences: deps.Sequences, ceiling: ceiling}, nil
}

// NextInvoiceNumber returns INV-<year>-<seq:06d>. Each UTC calendar year has its own sequence.
func (c *invoiceCounter) NextInvoiceNumber(ctx context.Context, at time.Time) (string, error) {
	year := at.UTC().Year()
	seq, err := c.sequences.Next(ctx, fmt.Sprintf("invoices:%04d", year), c.ceiling)
	if err != nil {
		if errors.Is(err, repositories.ErrSequenceExhausted) {
			return "", fmt.Errorf("%w: %d", ErrInvoiceSequenceExhausted, year)
		}
		if errors.Is(err, repositories.ErrSequenceScope) {
			return "", fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return "", mapRepositoryError(nil, err)
	}
	return fmt.Sprintf("INV-%04d-%06d", year, seq), nil
}
