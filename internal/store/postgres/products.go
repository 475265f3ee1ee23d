package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

const productColumns = `id, title, slug, description, brand, category, price::text,
	discount_percentage, rating, stock, thumbnail, images, is_active,
	screen, os, camera, camera_front, cpu, ram, rom, battery, sim, weight, colors,
	created_at, updated_at`

type productRepo struct{ q querier }

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var price string
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.Brand, &p.Category, &price,
		&p.DiscountPercentage, &p.Rating, &p.Stock, &p.Thumbnail, &p.Images, &p.Active,
		&p.Screen, &p.OS, &p.Camera, &p.CameraFront, &p.CPU, &p.RAM, &p.ROM, &p.Battery, &p.SIM, &p.Weight, &p.Colors,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.Price, err = parseDecimal(price)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Product, error) {
		return scanProduct(r)
	})
}

func (r productRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	return p, mapErr(err, "product "+id)
}

func (r productRepo) List(ctx context.Context, f store.ProductFilter) ([]domain.Product, error) {
	sql, args := productListQuery(f)
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "list products")
	}
	ps, err := collectProducts(rows)
	return ps, mapErr(err, "list products")
}

// arrays are NOT NULL columns
func fillArrays(p *domain.Product) {
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Colors == nil {
		p.Colors = []string{}
	}
}

func (r productRepo) Create(ctx context.Context, p *domain.Product) error {
	fillArrays(p)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.q.Exec(ctx, `INSERT INTO products(
		id, title, slug, description, brand, category, price, discount_percentage, rating, stock,
		thumbnail, images, is_active, screen, os, camera, camera_front, cpu, ram, rom, battery, sim,
		weight, colors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		$20, $21, $22, $23, $24, $25, $26)`,
		p.ID, p.Title, p.Slug, p.Description, p.Brand, p.Category, p.Price, p.DiscountPercentage, p.Rating, p.Stock,
		p.Thumbnail, p.Images, p.Active, p.Screen, p.OS, p.Camera, p.CameraFront, p.CPU, p.RAM, p.ROM, p.Battery, p.SIM,
		p.Weight, p.Colors, p.CreatedAt, p.UpdatedAt,
	)
	return mapErr(err, "product "+p.Slug)
}

func (r productRepo) Update(ctx context.Context, p *domain.Product) error {
	fillArrays(p)
	err := r.q.QueryRow(ctx, `UPDATE products SET
		title = $2, slug = $3, description = $4, brand = $5, category = $6, price = $7,
		discount_percentage = $8, rating = $9, thumbnail = $10, images = $11, is_active = $12,
		screen = $13, os = $14, camera = $15, camera_front = $16, cpu = $17, ram = $18, rom = $19,
		battery = $20, sim = $21, weight = $22, colors = $23, updated_at = now()
		WHERE id = $1 RETURNING stock, created_at, updated_at`,
		p.ID, p.Title, p.Slug, p.Description, p.Brand, p.Category, p.Price,
		p.DiscountPercentage, p.Rating, p.Thumbnail, p.Images, p.Active,
		p.Screen, p.OS, p.Camera, p.CameraFront, p.CPU, p.RAM, p.ROM,
		p.Battery, p.SIM, p.Weight, p.Colors,
	).Scan(&p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err, "product "+p.ID)
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "product "+id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("product %s not found", id)
	}
	return nil
}

func (r productRepo) LowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE stock > 0 AND stock <= $1 ORDER BY stock ASC, id LIMIT $2`, threshold, store.Limit(limit))
	if err != nil {
		return nil, mapErr(err, "low stock")
	}
	ps, err := collectProducts(rows)
	return ps, mapErr(err, "low stock")
}

func (r productRepo) ReserveStock(ctx context.Context, id string, qty int) (int, error) {
	if err := store.CheckQuantity(qty); err != nil {
		return 0, err
	}
	var left int
	err := r.q.QueryRow(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2 RETURNING stock`, id, qty).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapErr(err, "reserve stock")
	}

	var title string
	var stock int
	err = r.q.QueryRow(ctx, `SELECT title, stock FROM products WHERE id = $1`, id).Scan(&title, &stock)
	if err != nil {
		return 0, mapErr(err, "product "+id)
	}
	return 0, &domain.InsufficientStockError{ProductID: id, Title: title, Available: stock, Requested: qty}
}

func (r productRepo) ReleaseStock(ctx context.Context, id string, qty int) error {
	if err := store.CheckQuantity(qty); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, id, qty)
	if err != nil {
		return mapErr(err, "release stock")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("product %s not found", id)
	}
	return nil
}

func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var left int
	err := r.q.QueryRow(ctx, `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0 RETURNING stock`, id, delta).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapErr(err, "adjust stock")
	}

	var title string
	var stock int
	err = r.q.QueryRow(ctx, `SELECT title, stock FROM products WHERE id = $1`, id).Scan(&title, &stock)
	if err != nil {
		return 0, mapErr(err, "product "+id)
	}
	return 0, &domain.InsufficientStockError{ProductID: id, Title: title, Available: stock, Requested: -delta}
}
