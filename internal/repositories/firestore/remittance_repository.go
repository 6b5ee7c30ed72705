package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/codfleet/api/internal/domain"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/platform/pagination"
	"github.com/codfleet/api/internal/repositories"
)

const (
	remittancesCollection = "remittances"
	expensesCollection    = "expenses"
)

// RemittanceRepository stores driver remittances.
type RemittanceRepository struct {
	base *pfirestore.BaseRepository[remittanceDocument]
}

func NewRemittanceRepository(provider *pfirestore.Provider) (*RemittanceRepository, error) {
	if provider == nil {
		return nil, errors.New("remittance repository requires firestore provider")
	}
	return &RemittanceRepository{base: pfirestore.NewBaseRepository[remittanceDocument](provider, remittancesCollection)}, nil
}

func (r *RemittanceRepository) Insert(ctx context.Context, remittance domain.Remittance) error {
	return r.base.Create(ctx, remittance.ID, newRemittanceDocument(remittance))
}

func (r *RemittanceRepository) Update(ctx context.Context, remittance domain.Remittance) error {
	return r.base.Set(ctx, remittance.ID, newRemittanceDocument(remittance))
}

func (r *RemittanceRepository) FindByID(ctx context.Context, remittanceID string) (domain.Remittance, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(remittanceID))
	if err != nil {
		return domain.Remittance{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *RemittanceRepository) List(ctx context.Context, filter repositories.RemittanceListFilter) (domain.CursorPage[domain.Remittance], error) {
	limit := max(filter.Pagination.PageSize, 0)
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		ts, id, err := pagination.DecodeTimeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Remittance]{}, fmt.Errorf("remittance repository: invalid page token: %w", err)
		}
		startAfter = []any{ts, id}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.DriverID != "" {
			q = q.Where("driverId", "==", filter.DriverID)
		}
		if filter.ManagerID != "" {
			q = q.Where("managerId", "==", filter.ManagerID)
		}
		if filter.WorkspaceOwnerID != "" {
			q = q.Where("workspaceOwnerId", "==", filter.WorkspaceOwnerID)
		}
		q = whereIn(q, "status", filter.Status)
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Remittance]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		if nextToken, err = pagination.EncodeTimeCursor(last.Data.CreatedAt, last.ID); err != nil {
			return domain.CursorPage[domain.Remittance]{}, err
		}
	}

	items := make([]domain.Remittance, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return domain.CursorPage[domain.Remittance]{Items: items, NextPageToken: nextToken}, nil
}

type remittanceDocument struct {
	DriverID             string     `firestore:"driverId"`
	ManagerID            string     `firestore:"managerId"`
	WorkspaceOwnerID     string     `firestore:"workspaceOwnerId"`
	Country              string     `firestore:"country"`
	Currency             string     `firestore:"currency"`
	Amount               int64      `firestore:"amount"`
	FromDate             *time.Time `firestore:"fromDate,omitempty"`
	ToDate               *time.Time `firestore:"toDate,omitempty"`
	TotalDeliveredOrders int        `firestore:"totalDeliveredOrders"`
	Note                 string     `firestore:"note,omitempty"`
	Status               string     `firestore:"status"`
	AcceptedAt           *time.Time `firestore:"acceptedAt,omitempty"`
	AcceptedBy           string     `firestore:"acceptedBy,omitempty"`
	CreatedAt            time.Time  `firestore:"createdAt"`
	UpdatedAt            time.Time  `firestore:"updatedAt"`
}

func newRemittanceDocument(rem domain.Remittance) remittanceDocument {
	return remittanceDocument{
		DriverID:             rem.DriverID,
		ManagerID:            rem.ManagerID,
		WorkspaceOwnerID:     rem.WorkspaceOwnerID,
		Country:              rem.Country,
		Currency:             rem.Currency,
		Amount:               rem.Amount,
		FromDate:             utcPtr(rem.From),
		ToDate:               utcPtr(rem.To),
		TotalDeliveredOrders: rem.TotalDeliveredOrders,
		Note:                 rem.Note,
		Status:               string(rem.Status),
		AcceptedAt:           utcPtr(rem.AcceptedAt),
		AcceptedBy:           rem.AcceptedBy,
		CreatedAt:            rem.CreatedAt.UTC(),
		UpdatedAt:            rem.UpdatedAt.UTC(),
	}
}

func (d remittanceDocument) toDomain(id string) domain.Remittance {
	return domain.Remittance{
		ID:                   id,
		DriverID:             d.DriverID,
		ManagerID:            d.ManagerID,
		WorkspaceOwnerID:     d.WorkspaceOwnerID,
		Country:              d.Country,
		Currency:             d.Currency,
		Amount:               d.Amount,
		From:                 utcPtr(d.FromDate),
		To:                   utcPtr(d.ToDate),
		TotalDeliveredOrders: d.TotalDeliveredOrders,
		Note:                 d.Note,
		Status:               domain.RemittanceStatus(d.Status),
		AcceptedAt:           utcPtr(d.AcceptedAt),
		AcceptedBy:           d.AcceptedBy,
		CreatedAt:            d.CreatedAt.UTC(),
		UpdatedAt:            d.UpdatedAt.UTC(),
	}
}

// ExpenseRepository stores operating expenses.
type ExpenseRepository struct {
	base *pfirestore.BaseRepository[expenseDocument]
}

func NewExpenseRepository(provider *pfirestore.Provider) (*ExpenseRepository, error) {
	if provider == nil {
		return nil, errors.New("expense repository requires firestore provider")
	}
	return &ExpenseRepository{base: pfirestore.NewBaseRepository[expenseDocument](provider, expensesCollection)}, nil
}

func (r *ExpenseRepository) Insert(ctx context.Context, expense domain.Expense) error {
	return r.base.Create(ctx, expense.ID, expenseDocument{
		WorkspaceOwnerID: expense.WorkspaceOwnerID,
		CreatedBy:        expense.CreatedBy,
		Title:            expense.Title,
		Amount:           expense.Amount,
		Currency:         expense.Currency,
		Country:          expense.Country,
		Notes:            expense.Notes,
		IncurredAt:       expense.IncurredAt.UTC(),
		CreatedAt:        expense.CreatedAt.UTC(),
	})
}

func (r *ExpenseRepository) List(ctx context.Context, filter repositories.ExpenseListFilter) ([]domain.Expense, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.WorkspaceOwnerID != "" {
			q = q.Where("workspaceOwnerId", "==", filter.WorkspaceOwnerID)
		}
		if filter.DateRange.From != nil {
			q = q.Where("incurredAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("incurredAt", "<=", filter.DateRange.To.UTC())
		}
		return q.OrderBy("incurredAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Expense, 0, len(docs))
	for _, doc := range docs {
		d := doc.Data
		out = append(out, domain.Expense{
			ID:               doc.ID,
			WorkspaceOwnerID: d.WorkspaceOwnerID,
			CreatedBy:        d.CreatedBy,
			Title:            d.Title,
			Amount:           d.Amount,
			Currency:         d.Currency,
			Country:          d.Country,
			Notes:            d.Notes,
			IncurredAt:       d.IncurredAt.UTC(),
			CreatedAt:        d.CreatedAt.UTC(),
		})
	}
	return out, nil
}

type expenseDocument struct {
	WorkspaceOwnerID string    `firestore:"workspaceOwnerId"`
	CreatedBy        string    `firestore:"createdBy"`
	Title            string    `firestore:"title"`
	Amount           int64     `firestore:"amount"`
	Currency         string    `firestore:"currency"`
	Country          string    `firestore:"country,omitempty"`
	Notes            string    `firestore:"notes,omitempty"`
	IncurredAt       time.Time `firestore:"incurredAt"`
	CreatedAt        time.Time `firestore:"createdAt"`
}
