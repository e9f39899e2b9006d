package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes payment administration.
type Service interface {
	List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]PaymentDTO, int64, error)
	Get(ctx context.Context, storeID, id uuid.UUID) (*PaymentDTO, error)
	Create(ctx context.Context, storeID uuid.UUID, input CreatePaymentInput) (*PaymentDTO, error)
	Update(ctx context.Context, storeID, id uuid.UUID, input UpdatePaymentInput) (*PaymentDTO, error)
	Delete(ctx context.Context, storeID, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds the payment admin service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]PaymentDTO, int64, error) {
	rows, total, err := s.repo.List(ctx, storeID, page)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	out := make([]PaymentDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, total, nil
}

func (s *service) Get(ctx context.Context, storeID, id uuid.UUID) (*PaymentDTO, error) {
	payment, err := s.repo.FindByID(ctx, storeID, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(payment), nil
}

func (s *service) Create(ctx context.Context, storeID uuid.UUID, input CreatePaymentInput) (*PaymentDTO, error) {
	owned, err := s.repo.OrderBelongsToStore(ctx, storeID, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !owned {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	status := enums.PaymentStatusRequiresPayment
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
		}
		status = *input.Status
	}

	payment := &models.Payment{
		StoreID:         storeID,
		OrderID:         input.OrderID,
		AmountCents:     input.AmountCents,
		Currency:        money.NormalizeCurrency(input.Currency),
		Status:          status,
		PaymentIntentID: trimmedOrNil(input.PaymentIntentID),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already has a payment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
	}
	return FromModel(payment), nil
}

func (s *service) Update(ctx context.Context, storeID, id uuid.UUID, input UpdatePaymentInput) (*PaymentDTO, error) {
	fields := map[string]any{}
	if input.AmountCents != nil {
		if *input.AmountCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must not be negative")
		}
		fields["amount_cents"] = *input.AmountCents
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
		}
		fields["status"] = *input.Status
	}
	if input.PaymentIntentID != nil {
		fields["payment_intent_id"] = trimmedOrNil(input.PaymentIntentID)
	}
	if err := s.repo.UpdateFields(ctx, storeID, id, fields); err != nil {
		return nil, mapLookupError(err)
	}
	return s.Get(ctx, storeID, id)
}

func (s *service) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, storeID, id); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
}
