package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/shared"
)

// MappingRepository persists file-to-track bindings with soft delete.
//
// The schema enforces at most one active mapping per file path; multiple
// active mappings may share a track URI until the duplicate tooling
// resolves them.
type MappingRepository struct {
	q DBTX
}

// NewMappingRepository creates a new MappingRepository over the given query surface.
func NewMappingRepository(q DBTX) *MappingRepository {
	return &MappingRepository{q: q}
}

const mappingColumns = "id, file_path, track_uri, file_hash, file_size, last_modified, created_at, active"

// Create inserts a new active mapping.
func (r *MappingRepository) Create(ctx context.Context, m models.FileMapping) (int64, error) {
	query := `
		INSERT INTO file_mappings (file_path, track_uri, file_hash, file_size, last_modified, created_at, active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`

	result, err := r.q.ExecContext(ctx, query,
		m.FilePath,
		m.TrackURI,
		m.FileHash,
		m.FileSize,
		nullableTime(m.LastModified),
		time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert file mapping: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get mapping id: %w", err)
	}
	return id, nil
}

// ActiveByPath retrieves the active mapping for one file path.
func (r *MappingRepository) ActiveByPath(ctx context.Context, path string) (models.FileMapping, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+mappingColumns+" FROM file_mappings WHERE file_path = ? AND active = 1", path)
	m, err := scanMapping(row.Scan)
	if err == sql.ErrNoRows {
		return models.FileMapping{}, fmt.Errorf("%w: mapping for %s", shared.ErrNotFound, path)
	}
	if err != nil {
		return models.FileMapping{}, fmt.Errorf("failed to scan file mapping: %w", err)
	}
	return m, nil
}

// AllActive retrieves every active mapping.
func (r *MappingRepository) AllActive(ctx context.Context) ([]models.FileMapping, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+mappingColumns+" FROM file_mappings WHERE active = 1 ORDER BY file_path")
	if err != nil {
		return nil, fmt.Errorf("failed to query file mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.FileMapping
	for rows.Next() {
		m, err := scanMapping(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return mappings, nil
}

// DuplicateURIs groups active mappings by track URI, returning only URIs
// bound to more than one file.
func (r *MappingRepository) DuplicateURIs(ctx context.Context) (map[string][]models.FileMapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM file_mappings
		WHERE active = 1 AND track_uri IN (
			SELECT track_uri FROM file_mappings WHERE active = 1
			GROUP BY track_uri HAVING COUNT(*) > 1
		)
		ORDER BY track_uri, file_path
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate mappings: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.FileMapping)
	for rows.Next() {
		m, err := scanMapping(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file mapping: %w", err)
		}
		result[m.TrackURI] = append(result[m.TrackURI], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// Deactivate soft-deletes one mapping by ID.
func (r *MappingRepository) Deactivate(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, "UPDATE file_mappings SET active = 0 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to deactivate mapping: %w", err)
	}
	return nil
}

// DeactivateByPath soft-deletes the active mapping for one file path.
func (r *MappingRepository) DeactivateByPath(ctx context.Context, path string) error {
	if _, err := r.q.ExecContext(ctx,
		"UPDATE file_mappings SET active = 0 WHERE file_path = ? AND active = 1", path); err != nil {
		return fmt.Errorf("failed to deactivate mapping: %w", err)
	}
	return nil
}

func scanMapping(scan func(...any) error) (models.FileMapping, error) {
	var (
		m            models.FileMapping
		lastModified sql.NullTime
	)

	err := scan(&m.ID, &m.FilePath, &m.TrackURI, &m.FileHash, &m.FileSize, &lastModified, &m.CreatedAt, &m.Active)
	if err != nil {
		return models.FileMapping{}, err
	}

	if lastModified.Valid {
		t := lastModified.Time
		m.LastModified = &t
	}
	return m, nil
}
