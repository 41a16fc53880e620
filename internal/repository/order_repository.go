package repository

import (
	"database/sql"
	"errors"
	"time"

	"cryptobroker/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей orders.
// Журнал снимков ордеров: одна строка на локальный ref,
// Upsert перезаписывает снимок при каждой сверке.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, ref, remote_id, exchange, symbol, side, type, quantity, price, filled, price_avg, status, error_message, created_at, updated_at, completed_at`

func scanOrder(row interface{ Scan(...interface{}) error }, order *models.OrderRecord) error {
	return row.Scan(
		&order.ID,
		&order.Ref,
		&order.RemoteID,
		&order.Exchange,
		&order.Symbol,
		&order.Side,
		&order.Type,
		&order.Quantity,
		&order.Price,
		&order.Filled,
		&order.PriceAvg,
		&order.Status,
		&order.ErrorMessage,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.CompletedAt,
	)
}

// Upsert сохраняет снимок ордера. Для известного ref снимок
// перезаписывается, created_at не трогается.
func (r *OrderRepository) Upsert(order *models.OrderRecord) error {
	query := `
		INSERT INTO orders (ref, remote_id, exchange, symbol, side, type, quantity, price, filled, price_avg, status, error_message, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (ref) DO UPDATE SET
			remote_id = EXCLUDED.remote_id,
			filled = EXCLUDED.filled,
			price_avg = EXCLUDED.price_avg,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
		RETURNING id`

	return r.db.QueryRow(
		query,
		order.Ref,
		order.RemoteID,
		order.Exchange,
		order.Symbol,
		order.Side,
		order.Type,
		order.Quantity,
		order.Price,
		order.Filled,
		order.PriceAvg,
		order.Status,
		order.ErrorMessage,
		order.CreatedAt,
		order.UpdatedAt,
		order.CompletedAt,
	).Scan(&order.ID)
}

// GetByRef возвращает ордер по локальному номеру
func (r *OrderRepository) GetByRef(ref int64) (*models.OrderRecord, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ref = $1`

	order := &models.OrderRecord{}
	err := scanOrder(r.db.QueryRow(query, ref), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetByRemoteID возвращает ордер по ID биржи
func (r *OrderRepository) GetByRemoteID(remoteID string) (*models.OrderRecord, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE remote_id = $1`

	order := &models.OrderRecord{}
	err := scanOrder(r.db.QueryRow(query, remoteID), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]*models.OrderRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.OrderRecord
	for rows.Next() {
		order := &models.OrderRecord{}
		if err := scanOrder(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetRecent возвращает последние N ордеров
func (r *OrderRepository) GetRecent(limit int) ([]*models.OrderRecord, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1`

	return r.queryOrders(query, limit)
}

// GetBySymbol возвращает ордера по инструменту
func (r *OrderRepository) GetBySymbol(symbol string, limit int) ([]*models.OrderRecord, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryOrders(query, symbol, limit)
}

// GetByStatus возвращает ордера с определенным статусом
func (r *OrderRepository) GetByStatus(status string) ([]*models.OrderRecord, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC`

	return r.queryOrders(query, status)
}

// DeleteOlderThan удаляет снимки старше указанной даты
func (r *OrderRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	query := `DELETE FROM orders WHERE created_at < $1`

	result, err := r.db.Exec(query, timestamp)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Count возвращает общее количество ордеров
func (r *OrderRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM orders`

	var count int
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// CountByStatus возвращает количество ордеров с определенным статусом
func (r *OrderRepository) CountByStatus(status string) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE status = $1`

	var count int
	if err := r.db.QueryRow(query, status).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}
