// Package repo reads listing records from the relational system-of-record.
// It is a read-only collaborator: all CRUD lives in the platform services.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

// DefaultPageSize bounds one page of a record scan.
const DefaultPageSize = 200

// ListingSource is a Postgres-backed paginated reader of listing records.
// Pagination is keyset-based on the primary key, so page tokens stay valid
// while the table changes underneath.
type ListingSource struct {
	db       *sql.DB
	pageSize int
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string, pageSize int) (*ListingSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("repo: open: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: ping: %w: %v", domain.ErrUnavailable, err)
	}
	return NewListingSource(db, pageSize), nil
}

// NewListingSource wraps an existing database handle.
func NewListingSource(db *sql.DB, pageSize int) *ListingSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &ListingSource{db: db, pageSize: pageSize}
}

// Close closes the database handle.
func (s *ListingSource) Close() error { return s.db.Close() }

const selectCols = `id, owner_id, role, title, description, subjects, offered_skills, wanted_skills, active, last_modified_at`

// ListActive returns one page of records, active and inactive alike; the
// sync service needs inactive rows to issue deletions. An empty pageToken
// starts the scan; an empty returned token ends it.
func (s *ListingSource) ListActive(ctx context.Context, pageToken string) ([]domain.SourceRecord, string, error) {
	q := fmt.Sprintf(`SELECT %s FROM listings WHERE id > $1 ORDER BY id LIMIT $2`, selectCols)
	rows, err := s.db.QueryContext(ctx, q, pageToken, s.pageSize)
	if err != nil {
		return nil, "", fmt.Errorf("repo: list: %w: %v", domain.ErrUnavailable, err)
	}
	return s.scanPage(rows)
}

// ListModifiedSince returns one page of records modified after the given time.
func (s *ListingSource) ListModifiedSince(ctx context.Context, since time.Time, pageToken string) ([]domain.SourceRecord, string, error) {
	q := fmt.Sprintf(`SELECT %s FROM listings WHERE id > $1 AND last_modified_at > $2 ORDER BY id LIMIT $3`, selectCols)
	rows, err := s.db.QueryContext(ctx, q, pageToken, since, s.pageSize)
	if err != nil {
		return nil, "", fmt.Errorf("repo: list modified: %w: %v", domain.ErrUnavailable, err)
	}
	return s.scanPage(rows)
}

func (s *ListingSource) scanPage(rows *sql.Rows) ([]domain.SourceRecord, string, error) {
	defer rows.Close()

	var page []domain.SourceRecord
	for rows.Next() {
		var rec domain.SourceRecord
		var role, subjects string
		var description, offered, wanted sql.NullString
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &role, &rec.Title, &description,
			&subjects, &offered, &wanted, &rec.Active, &rec.LastModifiedAt); err != nil {
			return nil, "", fmt.Errorf("repo: scan: %w", err)
		}
		rec.Role = domain.Role(role)
		rec.Description = description.String
		rec.OfferedSkills = offered.String
		rec.WantedSkills = wanted.String
		if subjects != "" {
			rec.Subjects = strings.Split(subjects, ",")
		}
		page = append(page, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("repo: rows: %w: %v", domain.ErrUnavailable, err)
	}

	next := ""
	if len(page) == s.pageSize {
		next = page[len(page)-1].ID
	}
	return page, next, nil
}
