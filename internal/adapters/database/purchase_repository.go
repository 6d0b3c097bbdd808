package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/bazaar/internal/domain/checkout"
	"github.com/floroz/bazaar/internal/domain/goods"
)

// PostgresPurchaseRepository stores completed purchases
type PostgresPurchaseRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPurchaseRepository creates a new PostgreSQL purchase repository
func NewPostgresPurchaseRepository(pool *pgxpool.Pool) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{pool: pool}
}

// SavePurchases inserts purchases and their lines within a transaction
func (r *PostgresPurchaseRepository) SavePurchases(ctx context.Context, tx pgx.Tx, purchases []checkout.Purchase) error {
	batch := &pgx.Batch{}
	for _, p := range purchases {
		batch.Queue(`
			INSERT INTO purchases (id, user_id, shop_id, total, payment_id, shipment_id, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, p.ID, p.UserID, p.ShopID, p.Total, p.PaymentID, p.ShipmentID, p.CompletedAt)
		for _, itemID := range p.Items.ItemIDs() {
			batch.Queue(`
				INSERT INTO purchase_items (purchase_id, item_id, quantity, unit_price)
				VALUES ($1, $2, $3, $4)
			`, p.ID, itemID, p.Items[itemID], p.UnitPrices[itemID])
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert purchases: %w", err)
	}
	return nil
}

// ListByUser returns a user's purchases, oldest first
func (r *PostgresPurchaseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]checkout.Purchase, error) {
	return r.list(ctx, `WHERE p.user_id = $1`, userID)
}

// ListByShop returns a shop's sales, oldest first
func (r *PostgresPurchaseRepository) ListByShop(ctx context.Context, shopID uuid.UUID) ([]checkout.Purchase, error) {
	return r.list(ctx, `WHERE p.shop_id = $1`, shopID)
}

func (r *PostgresPurchaseRepository) list(ctx context.Context, where string, arg uuid.UUID) ([]checkout.Purchase, error) {
	query := `
		SELECT p.id, p.user_id, p.shop_id, p.total, p.payment_id, p.shipment_id, p.completed_at,
			i.item_id, i.quantity, i.unit_price
		FROM purchases p
		JOIN purchase_items i ON i.purchase_id = p.id
		` + where + `
		ORDER BY p.completed_at ASC, p.id, i.item_id
	`
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []checkout.Purchase
	for rows.Next() {
		var (
			p        checkout.Purchase
			itemID   uuid.UUID
			qty      int
			unitCost int64
		)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.ShopID, &p.Total, &p.PaymentID, &p.ShipmentID, &p.CompletedAt,
			&itemID, &qty, &unitCost,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if n := len(purchases); n == 0 || purchases[n-1].ID != p.ID {
			p.Items = goods.Basket{}
			p.UnitPrices = goods.Prices{}
			purchases = append(purchases, p)
		}
		last := &purchases[len(purchases)-1]
		last.Items[itemID] = qty
		last.UnitPrices[itemID] = unitCost
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read purchases: %w", err)
	}
	return purchases, nil
}
