package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/bazaar/internal/domain/auction"
)

// PostgresAuctionRepository persists auction snapshots using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// SaveAuction upserts the auction and replaces its bidder set
func (r *PostgresAuctionRepository) SaveAuction(ctx context.Context, tx pgx.Tx, snap auction.Snapshot) error {
	items, err := json.Marshal(snap.Items)
	if err != nil {
		return fmt.Errorf("failed to encode auction items: %w", err)
	}

	var highestBidder *uuid.UUID
	if snap.HighestBidderID != uuid.Nil {
		id := snap.HighestBidderID
		highestBidder = &id
	}

	query := `
		INSERT INTO auctions (
			id, shop_id, seller_id, purchase_id, items, initial_price, start_at, end_at,
			created_at, highest_bid, highest_bidder_id, completed, finalized_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET highest_bid = EXCLUDED.highest_bid,
			highest_bidder_id = EXCLUDED.highest_bidder_id,
			completed = EXCLUDED.completed,
			finalized_at = EXCLUDED.finalized_at
	`
	_, err = tx.Exec(ctx, query,
		snap.ID,
		snap.ShopID,
		snap.SellerID,
		snap.PurchaseID,
		items,
		snap.InitialPrice,
		snap.StartAt,
		snap.EndAt,
		snap.CreatedAt,
		snap.HighestBid,
		highestBidder,
		snap.Completed,
		snap.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert auction: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM auction_bidders WHERE auction_id = $1`, snap.ID)
	for _, bidder := range snap.Bidders {
		batch.Queue(`INSERT INTO auction_bidders (auction_id, bidder_id) VALUES ($1, $2)`, snap.ID, bidder)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to replace auction bidders: %w", err)
	}
	return nil
}

// LoadAuctions reads every persisted auction with its bidders
func (r *PostgresAuctionRepository) LoadAuctions(ctx context.Context) ([]auction.Snapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, seller_id, purchase_id, items, initial_price, start_at, end_at,
			created_at, highest_bid, highest_bidder_id, completed, finalized_at
		FROM auctions
		ORDER BY end_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}

	var snaps []auction.Snapshot
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			s             auction.Snapshot
			items         []byte
			highestBidder *uuid.UUID
			finalizedAt   *time.Time
		)
		if err := rows.Scan(
			&s.ID,
			&s.ShopID,
			&s.SellerID,
			&s.PurchaseID,
			&items,
			&s.InitialPrice,
			&s.StartAt,
			&s.EndAt,
			&s.CreatedAt,
			&s.HighestBid,
			&highestBidder,
			&s.Completed,
			&finalizedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		if err := json.Unmarshal(items, &s.Items); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode items of auction %s: %w", s.ID, err)
		}
		if highestBidder != nil {
			s.HighestBidderID = *highestBidder
		}
		s.FinalizedAt = finalizedAt
		index[s.ID] = len(snaps)
		snaps = append(snaps, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read auctions: %w", err)
	}

	bidders, err := r.pool.Query(ctx, `SELECT auction_id, bidder_id FROM auction_bidders ORDER BY auction_id, bidder_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auction bidders: %w", err)
	}
	defer bidders.Close()
	for bidders.Next() {
		var auctionID, bidderID uuid.UUID
		if err := bidders.Scan(&auctionID, &bidderID); err != nil {
			return nil, fmt.Errorf("failed to scan auction bidder: %w", err)
		}
		if i, ok := index[auctionID]; ok {
			snaps[i].Bidders = append(snaps[i].Bidders, bidderID)
		}
	}
	if err := bidders.Err(); err != nil {
		return nil, fmt.Errorf("failed to read auction bidders: %w", err)
	}
	return snaps, nil
}
