package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

const customerSelect = `SELECT a.id, a.username, a.password_hash, a.must_rotate_password, a.is_active,
	a.created_at, a.updated_at, c.full_name, c.email, c.address, c.phone,
	c.total_orders, c.total_spent::text, c.last_order_date
	FROM customers c JOIN accounts a ON a.id = c.account_id`

const staffSelect = `SELECT a.id, a.username, a.password_hash, a.must_rotate_password, a.is_active,
	a.created_at, a.updated_at, a.role, s.full_name, s.email, s.phone, s.address
	FROM staff_profiles s JOIN accounts a ON a.id = s.account_id`

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	var spent string
	err := row.Scan(
		&c.AccountID, &c.Username, &c.PasswordHash, &c.MustRotatePassword, &c.Active,
		&c.CreatedAt, &c.UpdatedAt, &c.FullName, &c.Email, &c.Address, &c.Phone,
		&c.TotalOrders, &spent, &c.LastOrderDate,
	)
	if err != nil {
		return c, err
	}
	c.TotalSpent, err = parseDecimal(spent)
	return c, err
}

func scanStaff(row pgx.Row) (domain.StaffAccount, error) {
	var a domain.StaffAccount
	err := row.Scan(
		&a.AccountID, &a.Username, &a.PasswordHash, &a.MustRotatePassword, &a.Active,
		&a.CreatedAt, &a.UpdatedAt, &a.AccountRole, &a.FullName, &a.Email, &a.Phone, &a.Address,
	)
	return a, err
}

func insertAccount(ctx context.Context, tx pgx.Tx, c *domain.Credentials, role domain.Role) error {
	if c.AccountID == "" {
		c.AccountID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := tx.Exec(ctx, `INSERT INTO accounts(id, username, password_hash, role, must_rotate_password, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		c.AccountID, c.Username, c.PasswordHash, string(role), c.MustRotatePassword, c.Active, now)
	return err
}

type customerRepo struct{ q querier }

func (r customerRepo) Get(ctx context.Context, id string) (domain.Customer, error) {
	c, err := scanCustomer(r.q.QueryRow(ctx, customerSelect+` WHERE a.id = $1`, id))
	return c, mapErr(err, "customer "+id)
}

func (r customerRepo) FindByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	c, err := scanCustomer(r.q.QueryRow(ctx, customerSelect+` WHERE c.phone = $1`, phone))
	return c, mapErr(err, "customer with phone "+phone)
}

func (r customerRepo) List(ctx context.Context, f store.CustomerFilter) ([]domain.Customer, error) {
	sql, args := customerListQuery(f)
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "list customers")
	}
	cs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Customer, error) {
		return scanCustomer(row)
	})
	return cs, mapErr(err, "list customers")
}

func (r customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	err := subTx(ctx, r.q, func(tx pgx.Tx) error {
		if err := insertAccount(ctx, tx, &c.Credentials, domain.RoleCustomer); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO customers(account_id, phone, full_name, email, address, total_orders, total_spent, last_order_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.AccountID, c.Phone, c.FullName, c.Email, c.Address, c.TotalOrders, c.TotalSpent, c.LastOrderDate)
		return err
	})
	return mapErr(err, "customer "+c.Phone)
}

func (r customerRepo) UpdateProfile(ctx context.Context, id string, p domain.CustomerProfile) (domain.Customer, error) {
	tag, err := r.q.Exec(ctx, `UPDATE customers SET full_name = $2, email = $3, address = $4 WHERE account_id = $1`,
		id, p.FullName, p.Email, p.Address)
	if err != nil {
		return domain.Customer{}, mapErr(err, "customer "+id)
	}
	if tag.RowsAffected() == 0 {
		return domain.Customer{}, domain.NotFoundf("customer %s not found", id)
	}
	if _, err := r.q.Exec(ctx, `UPDATE accounts SET updated_at = now() WHERE id = $1`, id); err != nil {
		return domain.Customer{}, mapErr(err, "customer "+id)
	}
	return r.Get(ctx, id)
}

func (r customerRepo) AdjustStats(ctx context.Context, id string, d domain.StatsDelta) (domain.Customer, error) {
	tag, err := r.q.Exec(ctx, `UPDATE customers SET
		total_orders = total_orders + $2,
		total_spent = total_spent + $3,
		last_order_date = COALESCE($4, last_order_date)
		WHERE account_id = $1`, id, d.Orders, d.Spent, d.LastOrderAt)
	if err != nil {
		return domain.Customer{}, mapErr(err, "customer stats")
	}
	if tag.RowsAffected() == 0 {
		return domain.Customer{}, domain.NotFoundf("customer %s not found", id)
	}
	return r.Get(ctx, id)
}

func (r customerRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE id = $1 AND role = $2`, id, string(domain.RoleCustomer))
	if err != nil {
		return mapErr(err, "customer "+id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("customer %s not found", id)
	}
	return nil
}

type accountRepo struct{ q querier }

func (r accountRepo) CreateStaff(ctx context.Context, a *domain.StaffAccount) error {
	err := subTx(ctx, r.q, func(tx pgx.Tx) error {
		if err := insertAccount(ctx, tx, &a.Credentials, a.AccountRole); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO staff_profiles(account_id, full_name, email, phone, address)
			VALUES ($1, $2, $3, $4, $5)`, a.AccountID, a.FullName, a.Email, a.Phone, a.Address)
		return err
	})
	return mapErr(err, "account "+a.Username)
}

func (r accountRepo) GetStaff(ctx context.Context, id string) (domain.StaffAccount, error) {
	a, err := scanStaff(r.q.QueryRow(ctx, staffSelect+` WHERE a.id = $1`, id))
	return a, mapErr(err, "account "+id)
}

func (r accountRepo) ListStaff(ctx context.Context, f store.AccountFilter) ([]domain.StaffAccount, error) {
	sql, args := staffListQuery(f)
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "list accounts")
	}
	as, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StaffAccount, error) {
		return scanStaff(row)
	})
	return as, mapErr(err, "list accounts")
}

func (r accountRepo) UpdateStaff(ctx context.Context, a *domain.StaffAccount) error {
	err := subTx(ctx, r.q, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE accounts SET username = $2, role = $3, is_active = $4, updated_at = now()
			WHERE id = $1 AND role <> $5 RETURNING created_at, updated_at`,
			a.AccountID, a.Username, string(a.AccountRole), a.Active, string(domain.RoleCustomer),
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE staff_profiles SET full_name = $2, email = $3, phone = $4, address = $5
			WHERE account_id = $1`, a.AccountID, a.FullName, a.Email, a.Phone, a.Address)
		return err
	})
	return mapErr(err, "account "+a.AccountID)
}

func (r accountRepo) FindByUsername(ctx context.Context, username string) (domain.Principal, error) {
	var id, role string
	err := r.q.QueryRow(ctx, `SELECT id, role FROM accounts WHERE username = $1`, username).Scan(&id, &role)
	if err != nil {
		return nil, mapErr(err, "account "+username)
	}
	return r.load(ctx, id, domain.Role(role))
}

func (r accountRepo) GetPrincipal(ctx context.Context, id string) (domain.Principal, error) {
	var role string
	if err := r.q.QueryRow(ctx, `SELECT role FROM accounts WHERE id = $1`, id).Scan(&role); err != nil {
		return nil, mapErr(err, "account "+id)
	}
	return r.load(ctx, id, domain.Role(role))
}

func (r accountRepo) load(ctx context.Context, id string, role domain.Role) (domain.Principal, error) {
	if role == domain.RoleCustomer {
		c, err := customerRepo{q: r.q}.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
	a, err := r.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r accountRepo) SetPassword(ctx context.Context, id, hash string, mustRotate bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE accounts SET password_hash = $2, must_rotate_password = $3, updated_at = now()
		WHERE id = $1`, id, hash, mustRotate)
	if err != nil {
		return mapErr(err, "account "+id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("account %s not found", id)
	}
	return nil
}

func (r accountRepo) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE accounts SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return mapErr(err, "account "+id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("account %s not found", id)
	}
	return nil
}
