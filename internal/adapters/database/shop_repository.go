package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/bazaar/internal/domain/discount"
	"github.com/floroz/bazaar/internal/domain/goods"
	"github.com/floroz/bazaar/internal/domain/shops"
)

// PostgresShopRepository persists shop snapshots using pgx
type PostgresShopRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresShopRepository creates a new PostgreSQL shop repository
func NewPostgresShopRepository(pool *pgxpool.Pool) *PostgresShopRepository {
	return &PostgresShopRepository{pool: pool}
}

// SaveShop upserts the shop row and replaces its items, discounts and reviews
func (r *PostgresShopRepository) SaveShop(ctx context.Context, tx pgx.Tx, snap shops.Snapshot) error {
	query := `
		INSERT INTO shops (id, name, owner_id, closed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, closed = EXCLUDED.closed, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, snap.ID, snap.Name, snap.OwnerID, snap.Closed, snap.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert shop: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM shop_items WHERE shop_id = $1`, snap.ID)
	batch.Queue(`DELETE FROM shop_discounts WHERE shop_id = $1`, snap.ID)
	batch.Queue(`DELETE FROM shop_reviews WHERE shop_id = $1`, snap.ID)

	for _, it := range snap.Items {
		batch.Queue(`
			INSERT INTO shop_items (shop_id, item_id, quantity, price, category)
			VALUES ($1, $2, $3, $4, $5)
		`, snap.ID, it.ItemID, it.Quantity, it.Price, string(it.Category))
	}

	for i, spec := range snap.Discounts {
		d, err := discount.New(spec)
		if err != nil {
			return fmt.Errorf("invalid discount at position %d: %w", i, err)
		}
		rule, err := json.Marshal(spec)
		if err != nil {
			return fmt.Errorf("failed to encode discount: %w", err)
		}
		batch.Queue(`
			INSERT INTO shop_discounts (shop_id, position, scope, rule)
			VALUES ($1, $2, $3, $4)
		`, snap.ID, i, d.Scope().String(), rule)
	}

	for i, rv := range snap.Reviews {
		batch.Queue(`
			INSERT INTO shop_reviews (shop_id, position, user_id, rating, body, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, snap.ID, i, rv.UserID, rv.Rating, rv.Text, rv.CreatedAt)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to replace shop contents: %w", err)
	}
	return nil
}

// LoadShops reads every persisted shop
func (r *PostgresShopRepository) LoadShops(ctx context.Context) ([]shops.Snapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, owner_id, closed, created_at
		FROM shops
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shops: %w", err)
	}
	var snaps []shops.Snapshot
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var s shops.Snapshot
		if err := rows.Scan(&s.ID, &s.Name, &s.OwnerID, &s.Closed, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		index[s.ID] = len(snaps)
		snaps = append(snaps, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shops: %w", err)
	}

	if err := r.loadItems(ctx, snaps, index); err != nil {
		return nil, err
	}
	if err := r.loadDiscounts(ctx, snaps, index); err != nil {
		return nil, err
	}
	if err := r.loadReviews(ctx, snaps, index); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (r *PostgresShopRepository) loadItems(ctx context.Context, snaps []shops.Snapshot, index map[uuid.UUID]int) error {
	rows, err := r.pool.Query(ctx, `SELECT shop_id, item_id, quantity, price, category FROM shop_items`)
	if err != nil {
		return fmt.Errorf("failed to query shop items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			shopID   uuid.UUID
			item     shops.ItemSnapshot
			category string
		)
		if err := rows.Scan(&shopID, &item.ItemID, &item.Quantity, &item.Price, &category); err != nil {
			return fmt.Errorf("failed to scan shop item: %w", err)
		}
		item.Category = goods.Category(category)
		if i, ok := index[shopID]; ok {
			snaps[i].Items = append(snaps[i].Items, item)
		}
	}
	return rows.Err()
}

func (r *PostgresShopRepository) loadDiscounts(ctx context.Context, snaps []shops.Snapshot, index map[uuid.UUID]int) error {
	rows, err := r.pool.Query(ctx, `SELECT shop_id, rule FROM shop_discounts ORDER BY shop_id, position`)
	if err != nil {
		return fmt.Errorf("failed to query shop discounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			shopID uuid.UUID
			rule   []byte
			spec   discount.Spec
		)
		if err := rows.Scan(&shopID, &rule); err != nil {
			return fmt.Errorf("failed to scan shop discount: %w", err)
		}
		if err := json.Unmarshal(rule, &spec); err != nil {
			return fmt.Errorf("failed to decode discount for shop %s: %w", shopID, err)
		}
		if i, ok := index[shopID]; ok {
			snaps[i].Discounts = append(snaps[i].Discounts, spec)
		}
	}
	return rows.Err()
}

func (r *PostgresShopRepository) loadReviews(ctx context.Context, snaps []shops.Snapshot, index map[uuid.UUID]int) error {
	rows, err := r.pool.Query(ctx, `
		SELECT shop_id, user_id, rating, body, created_at
		FROM shop_reviews
		ORDER BY shop_id, position
	`)
	if err != nil {
		return fmt.Errorf("failed to query shop reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			shopID uuid.UUID
			rv     shops.Review
		)
		if err := rows.Scan(&shopID, &rv.UserID, &rv.Rating, &rv.Text, &rv.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan shop review: %w", err)
		}
		if i, ok := index[shopID]; ok {
			snaps[i].Reviews = append(snaps[i].Reviews, rv)
		}
	}
	return rows.Err()
}
