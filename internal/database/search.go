package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"flight-aggregator/internal/models"
)

// SaveSearchBatch stores one supplier's normalized routes for a search
func (db *DB) SaveSearchBatch(ctx context.Context, b *models.SearchBatch) error {
	routes, err := json.Marshal(b.Routes)
	if err != nil {
		return fmt.Errorf("failed to encode routes: %w", err)
	}

	query := `
		INSERT INTO search_response (search_id, provider, expected_count, failed, routes, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query, b.SearchID, b.Provider, b.ExpectedCount, b.Failed, string(routes), b.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to save search batch: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		b.ID = id
	}

	return nil
}

// ListSearchBatches retrieves every batch persisted for a search, oldest first
func (db *DB) ListSearchBatches(ctx context.Context, searchID string) ([]models.SearchBatch, error) {
	query := `
		SELECT id, search_id, provider, expected_count, failed, routes, started_at, created_at
		FROM search_response
		WHERE search_id = ?
		ORDER BY id
	`

	rows, err := db.QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query search batches: %w", err)
	}
	defer rows.Close()

	var batches []models.SearchBatch
	for rows.Next() {
		var b models.SearchBatch
		var routes []byte
		if err := rows.Scan(&b.ID, &b.SearchID, &b.Provider, &b.ExpectedCount, &b.Failed, &routes,
			&b.StartedAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search batch: %w", err)
		}
		if len(routes) > 0 {
			if err := json.Unmarshal(routes, &b.Routes); err != nil {
				return nil, fmt.Errorf("failed to decode routes of batch %d: %w", b.ID, err)
			}
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search batches: %w", err)
	}

	return batches, nil
}

// DeleteSearchBatches removes a completed search
func (db *DB) DeleteSearchBatches(ctx context.Context, searchID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM search_response WHERE search_id = ?`, searchID); err != nil {
		return fmt.Errorf("failed to delete search batches: %w", err)
	}
	return nil
}

// SaveRevalidateResponse upserts the raw fare quote of one leg
func (db *DB) SaveRevalidateResponse(ctx context.Context, rec *models.RevalidateRecord) error {
	query := `
		INSERT INTO revalidate_response (solution_id, provider_code, raw_response)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE raw_response = VALUES(raw_response), updated_at = NOW()
	`

	raw := rec.RawResponse
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if _, err := db.ExecContext(ctx, query, rec.SolutionID, rec.ProviderCode, string(raw)); err != nil {
		return fmt.Errorf("failed to save revalidate response: %w", err)
	}

	return nil
}

// GetRevalidateResponse retrieves the raw fare quote stored for a leg
func (db *DB) GetRevalidateResponse(ctx context.Context, solutionID, providerCode string) (*models.RevalidateRecord, error) {
	query := `
		SELECT solution_id, provider_code, raw_response, created_at
		FROM revalidate_response
		WHERE solution_id = ? AND provider_code = ?
	`

	var rec models.RevalidateRecord
	var raw []byte
	err := db.QueryRowContext(ctx, query, solutionID, providerCode).Scan(
		&rec.SolutionID, &rec.ProviderCode, &raw, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("solution %s: %w", solutionID, ErrRevalidateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get revalidate response: %w", err)
	}
	rec.RawResponse = json.RawMessage(raw)

	return &rec, nil
}

// LogError appends an error_logs row
func (db *DB) LogError(ctx context.Context, e models.ErrorLog) error {
	query := `
		INSERT INTO error_logs (source, supplier_code, message, stack, request, response)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query, e.Source, e.Supplier, e.Message, e.Stack,
		nullJSON(e.Request), nullJSON(e.Response))
	if err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}

	return nil
}

// ActiveSuppliers lists suppliers with exactly one active credential for module
func (db *DB) ActiveSuppliers(ctx context.Context, module string) ([]string, error) {
	query := `
		SELECT supplier_code
		FROM supplier_credentials
		WHERE module = ? AND is_active = 1
		GROUP BY supplier_code
		HAVING COUNT(*) = 1
		ORDER BY supplier_code
	`

	rows, err := db.QueryContext(ctx, query, module)
	if err != nil {
		return nil, fmt.Errorf("failed to query active suppliers: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan supplier code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read active suppliers: %w", err)
	}

	return codes, nil
}

// SupplierCredential retrieves the single active credential of a supplier
func (db *DB) SupplierCredential(ctx context.Context, supplierCode, module string) (*models.SupplierCredential, error) {
	query := `
		SELECT supplier_code, module, base_url, client_id, user_name, password, is_active
		FROM supplier_credentials
		WHERE supplier_code = ? AND module = ? AND is_active = 1
		LIMIT 2
	`

	rows, err := db.QueryContext(ctx, query, supplierCode, module)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier credential: %w", err)
	}
	defer rows.Close()

	var creds []models.SupplierCredential
	for rows.Next() {
		var c models.SupplierCredential
		if err := rows.Scan(&c.SupplierCode, &c.Module, &c.BaseURL, &c.ClientID, &c.UserName,
			&c.Password, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan supplier credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read supplier credential: %w", err)
	}

	switch len(creds) {
	case 0:
		return nil, fmt.Errorf("%s/%s: %w", supplierCode, module, ErrCredentialNotFound)
	case 1:
		return &creds[0], nil
	default:
		return nil, fmt.Errorf("%s/%s: %w", supplierCode, module, ErrAmbiguousCredential)
	}
}
