package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-service/internal/apperr"
	"github.com/trogers1052/portfolio-service/internal/models"
)

// CreatePortfolio inserts a new portfolio
func (db *DB) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (user_id, name, remarks, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := db.conn.QueryRowContext(ctx, query, p.UserID, p.Name, p.Remarks, createdAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.CreatedAt = createdAt
	return nil
}

// GetPortfolio retrieves a portfolio by ID
func (db *DB) GetPortfolio(ctx context.Context, id int) (*models.Portfolio, error) {
	return getPortfolio(ctx, db.conn, id)
}

func getPortfolio(ctx context.Context, q querier, id int) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, remarks, created_at
		FROM portfolios
		WHERE id = $1
	`
	var p models.Portfolio
	err := q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Remarks, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("portfolio", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return &p, nil
}

// ListPortfolios retrieves a user's portfolios, oldest first
func (db *DB) ListPortfolios(ctx context.Context, userID int) ([]*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, remarks, created_at
		FROM portfolios
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := []*models.Portfolio{}
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Remarks, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolios: %w", err)
	}
	return portfolios, nil
}

// UpdatePortfolio updates a portfolio's name and remarks
func (db *DB) UpdatePortfolio(ctx context.Context, p *models.Portfolio) error {
	query := `UPDATE portfolios SET name = $2, remarks = $3 WHERE id = $1`
	result, err := db.conn.ExecContext(ctx, query, p.ID, p.Name, p.Remarks)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperr.NotFound("portfolio", p.ID)
	}
	return nil
}

// DeletePortfolio removes a portfolio; holdings and transactions cascade
func (db *DB) DeletePortfolio(ctx context.Context, id int) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperr.NotFound("portfolio", id)
	}
	return nil
}
