package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/registration/internal/domain/registrations"
)

type RegistrationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type registrationRow struct {
	ID            string
	CreatedAt     pgtype.Timestamptz
	Name          string
	Email         string
	Phone         string
	WantsShirt    bool
	ShirtSize     *string
	ShirtName     *string
	PaymentStatus string
	Sex           *string
	FinishTime    pgtype.Int4
}

const registrationColumns = `id, created_at, nome, email, telefone, quer_camisa, tamanho_camisa,
       nome_na_camisa, status_pagamento, sexo, tempo`

func (r *RegistrationRepository) Create(ctx context.Context, params registrations.CreateParams) (*registrations.Registration, error) {
	var size *string
	if params.ShirtSize != nil {
		s := string(*params.ShirtSize)
		size = &s
	}

	row := r.queryer().QueryRow(ctx, `
INSERT INTO registrations (id, nome, email, telefone, quer_camisa, tamanho_camisa, nome_na_camisa, sexo)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+registrationColumns,
		params.ID, params.Name, params.Email, params.Phone, params.WantsShirt, size, params.ShirtName, params.Sex,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) List(ctx context.Context, filters registrations.Filters) ([]registrations.Registration, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT `+registrationColumns+`
  FROM registrations
 WHERE ($1 = '' OR nome ILIKE '%' || $1 || '%' OR nome_na_camisa ILIKE '%' || $1 || '%')
 ORDER BY created_at DESC, id DESC
`, escapeILIKEPattern(filters.Query))
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []registrations.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

func (r *RegistrationRepository) Get(ctx context.Context, id string) (*registrations.Registration, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registrations.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// Update writes only the fields present in params.
func (r *RegistrationRepository) Update(ctx context.Context, id string, params registrations.UpdateParams) (*registrations.Registration, error) {
	var (
		sets []string
		args = []any{id}
	)
	if params.PaymentStatus != nil {
		args = append(args, string(*params.PaymentStatus))
		sets = append(sets, fmt.Sprintf("status_pagamento = $%d", len(args)))
	}
	if params.FinishTime.Set {
		args = append(args, params.FinishTime.Seconds)
		sets = append(sets, fmt.Sprintf("tempo = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil, registrations.ErrInvalidUpdate
	}

	row := r.queryer().QueryRow(ctx,
		`UPDATE registrations SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+registrationColumns,
		args...,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registrations.ErrNotFound
		}
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registrations.ErrNotFound
	}
	return nil
}

func (r *RegistrationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanRegistration(row pgx.Row) (*registrations.Registration, error) {
	var data registrationRow
	if err := row.Scan(
		&data.ID,
		&data.CreatedAt,
		&data.Name,
		&data.Email,
		&data.Phone,
		&data.WantsShirt,
		&data.ShirtSize,
		&data.ShirtName,
		&data.PaymentStatus,
		&data.Sex,
		&data.FinishTime,
	); err != nil {
		return nil, err
	}

	reg := &registrations.Registration{
		ID:            data.ID,
		Name:          data.Name,
		Email:         data.Email,
		Phone:         data.Phone,
		WantsShirt:    data.WantsShirt,
		ShirtName:     data.ShirtName,
		PaymentStatus: registrations.PaymentStatus(data.PaymentStatus),
		Sex:           data.Sex,
	}
	if data.CreatedAt.Valid {
		reg.CreatedAt = data.CreatedAt.Time
	}
	if data.ShirtSize != nil {
		size := registrations.ShirtSize(*data.ShirtSize)
		reg.ShirtSize = &size
	}
	if data.FinishTime.Valid {
		seconds := int(data.FinishTime.Int32)
		reg.FinishTime = &seconds
	}
	return reg, nil
}

// escapeILIKEPattern escapes LIKE metacharacters so user input matches
// literally.
func escapeILIKEPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
