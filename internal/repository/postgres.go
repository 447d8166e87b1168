// Package repository содержит хранилище каталога предложений в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/dealhunter-bot/internal/catalog"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrCatalogEmpty возвращается, если в базе ещё нет ни одной категории.
	ErrCatalogEmpty = errors.New("catalog is empty")
	// ErrDuplicateDeal возвращается при нарушении уникальности категории или предложения.
	ErrDuplicateDeal = errors.New("duplicate catalog entry")
)

// PostgresRepository хранит каталог в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// retryDelays задаёт паузы между повторами транзакции записи.
var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || attempt == len(retryDelays) || !isRetryable(err) {
			return err
		}

		timer := time.NewTimer(retryDelays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// isRetryable сообщает, можно ли повторить транзакцию целиком:
// конфликт сериализации, взаимоблокировка или обрыв соединения.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsTransactionRollback(pgErr.Code) || pgerrcode.IsConnectionException(pgErr.Code)
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// LoadCatalog читает каталог в сохранённом порядке категорий и предложений.
func (r *PostgresRepository) LoadCatalog(ctx context.Context) (*model.Catalog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, is_default FROM categories ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}

	var cats []categoryRow
	for rows.Next() {
		var c categoryRow
		if err := rows.Scan(&c.Name, &c.IsDefault); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT category, id, name, price, original_price, discount, rating, reviews,
		        store, region, after_sales, delivery, purchase_url
		 FROM deals
		 ORDER BY category, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("select deals: %w", err)
	}
	defer rows.Close()

	var deals []dealRow
	for rows.Next() {
		var d dealRow
		if err := rows.Scan(&d.Category, &d.ID, &d.Name, &d.Price, &d.OriginalPrice, &d.Discount,
			&d.Rating, &d.Reviews, &d.Store, &d.Region, &d.AfterSales, &d.Delivery, &d.PurchaseURL); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return buildCatalog(cats, deals)
}

// ReplaceCatalog атомарно заменяет сохранённый каталог переданным.
func (r *PostgresRepository) ReplaceCatalog(ctx context.Context, c *model.Catalog) error {
	if err := catalog.Validate(c); err != nil {
		return err
	}

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM categories`); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}

		for i, cat := range c.Categories {
			_, err := tx.Exec(ctx,
				`INSERT INTO categories (name, position, is_default) VALUES ($1, $2, $3)`,
				cat.Name, i, cat.Name == c.DefaultCategory,
			)
			if err != nil {
				return mapWriteError(err, "insert category")
			}

			for j, d := range cat.Deals {
				_, err := tx.Exec(ctx,
					`INSERT INTO deals (id, category, position, name, price, original_price, discount,
					                    rating, reviews, store, region, after_sales, delivery, purchase_url)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
					d.ID, cat.Name, j, d.Name, d.Price, d.OriginalPrice, d.Discount,
					d.Rating, d.Reviews, d.Store, d.Region, d.AfterSales, d.Delivery, d.PurchaseURL,
				)
				if err != nil {
					return mapWriteError(err, "insert deal")
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

func mapWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateDeal, pgErr.Detail)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type categoryRow struct {
	Name      string
	IsDefault bool
}

type dealRow struct {
	Category string
	model.Deal
}

func buildCatalog(cats []categoryRow, deals []dealRow) (*model.Catalog, error) {
	if len(cats) == 0 {
		return nil, ErrCatalogEmpty
	}

	byCategory := make(map[string][]model.Deal, len(cats))
	for _, d := range deals {
		byCategory[d.Category] = append(byCategory[d.Category], d.Deal)
	}

	c := &model.Catalog{Categories: make([]model.Category, 0, len(cats))}
	for _, cat := range cats {
		c.Categories = append(c.Categories, model.Category{
			Name:  cat.Name,
			Deals: byCategory[cat.Name],
		})
		if cat.IsDefault {
			c.DefaultCategory = cat.Name
		}
	}

	if err := catalog.Validate(c); err != nil {
		return nil, fmt.Errorf("stored catalog: %w", err)
	}

	return c, nil
}
