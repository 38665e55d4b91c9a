package products

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
)

const productColumns = `id::text, seller_id, sku, name, description, COALESCE(category_id::text, ''), price_cents, status, created_at, updated_at`

// Repository persists products.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where, args := listConditions(filters)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE ` + where +
		` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, filters.Limit, offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	return products, total, err
}

func listConditions(filters ListFilters) (string, []any) {
	conds := []string{"1=1"}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filters.SellerID != "" {
		add("seller_id = ?", filters.SellerID)
	}
	if filters.CategoryID != "" {
		add("category_id::text = ?", filters.CategoryID)
	}
	if filters.Status != "" {
		add("status = ?", filters.Status)
	}
	if filters.Search != "" {
		add("(name ILIKE ? OR sku ILIKE ?)", "%"+filters.Search+"%")
	}
	return strings.Join(conds, " AND "), args
}

func (r *repository) Get(ctx context.Context, id string) (Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return Product{}, err
	}
	return oneProduct(rows)
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	rows, err := r.db.Query(ctx, `INSERT INTO products (id, seller_id, sku, name, description, category_id, price_cents, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8)
		RETURNING `+productColumns,
		p.ID, p.SellerID, p.SKU, p.Name, p.Description, p.CategoryID, p.PriceCents, p.Status)
	if err != nil {
		return Product{}, err
	}
	return oneProduct(rows)
}

func (r *repository) Update(ctx context.Context, p Product) (Product, error) {
	rows, err := r.db.Query(ctx, `UPDATE products SET sku = $2, name = $3, description = $4,
		category_id = NULLIF($5, '')::uuid, price_cents = $6, status = $7, updated_at = NOW()
		WHERE id = $1 RETURNING `+productColumns,
		p.ID, p.SKU, p.Name, p.Description, p.CategoryID, p.PriceCents, p.Status)
	if err != nil {
		return Product{}, err
	}
	return oneProduct(rows)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func oneProduct(rows pgx.Rows) (Product, error) {
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Product{}, httpx.ErrNotFound
	case isUniqueViolation(err):
		return Product{}, httpx.ErrDuplicate
	}
	return p, err
}

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SellerID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.PriceCents, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir
	case "price":
		return "price_cents " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
