package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const pgUniqueViolation = "23505"

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create вставляет заказ и занимает слот клиента в одной транзакции.
// Строка клиента блокируется FOR UPDATE, параллельное создание упирается в неё
// или в частичный уникальный индекс orders_one_open_per_customer.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return inTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var openOrderID sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT open_order_id FROM customers WHERE id = $1 FOR UPDATE
		`, order.CustomerID).Scan(&openOrderID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCustomerNotFound
		}
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		if openOrderID.Valid {
			return domain.ErrOrderModified
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, customer_id, status, version, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`,
			order.ID, order.CustomerID, string(order.Status), order.Version, order.CreatedAt, order.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrOrderModified
			}
			return fmt.Errorf("insert order: %w", err)
		}

		if err := insertLineItems(ctx, tx, order); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE customers SET open_order_id = $1 WHERE id = $2
		`, order.ID, order.CustomerID); err != nil {
			return fmt.Errorf("attach open order: %w", err)
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, version, created_at, updated_at, submitted_at
		FROM orders
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := loadLineItems(ctx, r.db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

// Save выполняет compare-and-swap по версии и переписывает позиции заказа.
func (r *orderRepository) Save(ctx context.Context, order domain.Order, expectedVersion int64) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return inTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		if err := casOrder(ctx, tx, order, expectedVersion); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("clear line items: %w", err)
		}
		return insertLineItems(ctx, tx, order)
	})
}

// Submit фиксирует отправку, освобождает слот клиента и обновляет отметку истории.
func (r *orderRepository) Submit(ctx context.Context, order domain.Order, expectedVersion int64) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return inTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		if err := casOrder(ctx, tx, order, expectedVersion); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE customers
			SET open_order_id = NULL,
			    history_updated_at = $1
			WHERE id = $2
			  AND open_order_id = $3
		`, order.UpdatedAt, order.CustomerID, order.ID)
		if err != nil {
			return fmt.Errorf("release open order: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrOrderModified
		}
		return nil
	})
}

func (r *orderRepository) ListSubmitted(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, customer_id, status, version, created_at, updated_at, submitted_at
		FROM orders
		WHERE customer_id = $1
		  AND status = 'SUBMITTED'
		ORDER BY submitted_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list submitted orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := loadLineItems(ctx, r.db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// casOrder обновляет строку заказа, только если в базе лежит открытый заказ версии expectedVersion.
func casOrder(ctx context.Context, tx *sql.Tx, order domain.Order, expectedVersion int64) error {
	var submittedAt sql.NullTime
	if !order.SubmittedAt.IsZero() {
		submittedAt = sql.NullTime{Time: order.SubmittedAt, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    version = $2,
		    updated_at = $3,
		    submitted_at = $4
		WHERE id = $5
		  AND version = $6
		  AND status = 'OPEN'
	`,
		string(order.Status), order.Version, order.UpdatedAt, submittedAt, order.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	exists, err := orderExistsTx(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderModified
}

func insertLineItems(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	for pos, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (
				order_id, product_id, position, quantity, unit_price_minor, added_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			order.ID, item.ProductID, pos, item.Quantity, item.UnitPriceMinor, item.AddedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateLineItem
			}
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadLineItems(ctx context.Context, q queryer, orderID string) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price_minor, added_at
		FROM line_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPriceMinor, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		status      string
		submittedAt sql.NullTime
	)
	if err := row.Scan(
		&order.ID, &order.CustomerID, &status, &order.Version,
		&order.CreatedAt, &order.UpdatedAt, &submittedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	if submittedAt.Valid {
		order.SubmittedAt = submittedAt.Time
	}
	return order, nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
