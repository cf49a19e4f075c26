package registrations

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("registration not found")
	ErrInvalidUpdate = errors.New("invalid registration update")
)

// ShirtSize is the printed size of the event shirt.
type ShirtSize string

const (
	ShirtPP  ShirtSize = "PP"
	ShirtP   ShirtSize = "P"
	ShirtM   ShirtSize = "M"
	ShirtG   ShirtSize = "G"
	ShirtGG  ShirtSize = "GG"
	ShirtXGG ShirtSize = "XGG"
)

var ShirtSizes = []ShirtSize{ShirtPP, ShirtP, ShirtM, ShirtG, ShirtGG, ShirtXGG}

func (s ShirtSize) Valid() bool {
	for _, size := range ShirtSizes {
		if s == size {
			return true
		}
	}
	return false
}

// PaymentStatus values are stored verbatim in the registrations table.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pendente"
	PaymentPaid    PaymentStatus = "pago"
	PaymentExempt  PaymentStatus = "isento"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentExempt:
		return true
	}
	return false
}

type Registration struct {
	ID            string
	CreatedAt     time.Time
	Name          string
	Email         string
	Phone         string
	WantsShirt    bool
	ShirtSize     *ShirtSize
	ShirtName     *string
	PaymentStatus PaymentStatus
	Sex           *string
	// FinishTime is the official race time in whole seconds.
	FinishTime *int
}

// Filters narrows the admin listing. Query matches name or shirt print name,
// case-insensitively.
type Filters struct {
	Query string
}

type CreateParams struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	WantsShirt bool
	ShirtSize  *ShirtSize
	ShirtName  *string
	Sex        *string
}

// FinishTimeUpdate distinguishes "leave unchanged" from "clear".
type FinishTimeUpdate struct {
	Set     bool
	Seconds *int
}

type UpdateParams struct {
	PaymentStatus *PaymentStatus
	FinishTime    FinishTimeUpdate
}

func (p UpdateParams) Empty() bool {
	return p.PaymentStatus == nil && !p.FinishTime.Set
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Registration, error)
	// List returns registrations newest first.
	List(ctx context.Context, filters Filters) ([]Registration, error)
	Get(ctx context.Context, id string) (*Registration, error)
	Update(ctx context.Context, id string, params UpdateParams) (*Registration, error)
	Delete(ctx context.Context, id string) error
}
