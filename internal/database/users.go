package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, hashed_password, name, address, phone, consent,
	loyalty_consent, role, account_status, employee_type,
	card_number, card_expiry, card_holder, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.Name, &u.Address, &u.Phone,
		&u.Consent, &u.LoyaltyConsent, &u.Role, &u.AccountStatus,
		&u.EmployeeType, &u.CardNumber, &u.CardExpiry, &u.CardHolder,
		&u.CreatedAt,
	)
	return u, err
}

type CreateUserParams struct {
	Email          string
	HashedPassword string
	Name           string
	Address        pgtype.Text
	Phone          pgtype.Text
	Consent        bool
	LoyaltyConsent bool
	Role           string
	AccountStatus  string
	EmployeeType   pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, name, address, phone,
			consent, loyalty_consent, role, account_status, employee_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+userColumns,
		arg.Email, arg.HashedPassword, arg.Name, arg.Address, arg.Phone,
		arg.Consent, arg.LoyaltyConsent, arg.Role, arg.AccountStatus, arg.EmployeeType,
	)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) ListUsersByRole(ctx context.Context, role string) ([]User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) ListPendingUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE account_status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) UpdateUserPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET hashed_password = $2 WHERE id = $1`, id, hashedPassword)
	return err
}

type UpdateUserAddressParams struct {
	ID      uuid.UUID
	Address pgtype.Text
	Phone   pgtype.Text
}

func (q *Queries) UpdateUserAddress(ctx context.Context, arg UpdateUserAddressParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET address = $2, phone = COALESCE($3, phone)
		WHERE id = $1
		RETURNING `+userColumns,
		arg.ID, arg.Address, arg.Phone,
	)
	return scanUser(row)
}

type UpdateUserProfileParams struct {
	ID             uuid.UUID
	Name           string
	Phone          pgtype.Text
	Consent        bool
	LoyaltyConsent bool
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET name = $2, phone = $3, consent = $4, loyalty_consent = $5
		WHERE id = $1
		RETURNING `+userColumns,
		arg.ID, arg.Name, arg.Phone, arg.Consent, arg.LoyaltyConsent,
	)
	return scanUser(row)
}

type UpdateUserCardParams struct {
	ID         uuid.UUID
	CardNumber pgtype.Text
	CardExpiry pgtype.Text
	CardHolder pgtype.Text
}

func (q *Queries) UpdateUserCard(ctx context.Context, arg UpdateUserCardParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET card_number = $2, card_expiry = $3, card_holder = $4
		WHERE id = $1
		RETURNING `+userColumns,
		arg.ID, arg.CardNumber, arg.CardExpiry, arg.CardHolder,
	)
	return scanUser(row)
}

func (q *Queries) UpdateUserAccountStatus(ctx context.Context, id uuid.UUID, status string) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET account_status = $2 WHERE id = $1
		RETURNING `+userColumns,
		id, status,
	)
	return scanUser(row)
}

func (q *Queries) UpdateUserEmployeeType(ctx context.Context, id uuid.UUID, employeeType pgtype.Text) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET employee_type = $2 WHERE id = $1 AND role = 'employee'
		RETURNING `+userColumns,
		id, employeeType,
	)
	return scanUser(row)
}

func (q *Queries) UpdateUserRole(ctx context.Context, id uuid.UUID, role string) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET role = $2 WHERE id = $1
		RETURNING `+userColumns,
		id, role,
	)
	return scanUser(row)
}
