package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a site ID does not exist.
	ErrNotFound = errors.New("site not found")
	// ErrInvalidSite is returned when a site fails validation.
	ErrInvalidSite = errors.New("invalid site")
)

// TimeLayout is a fixed-width RFC3339 layout so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ValidateSite checks the fields a site must carry. Both name and URL are
// required. A URL without a scheme is accepted (it is upgraded to https when
// fetched); a URL with a scheme must use http or https.
func ValidateSite(name, urlStr string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSite)
	}
	if strings.TrimSpace(urlStr) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidSite)
	}

	if SchemeOmitted(urlStr) {
		return nil
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSite, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidSite, u.Scheme)
	}
	return nil
}

// SchemeOmitted reports whether raw is a host reference without a scheme.
// url.Parse reads "example.com:8080" as scheme "example.com" and rejects
// "127.0.0.1:8080" outright, so both are recognized here.
func SchemeOmitted(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		_, err = url.Parse("https://" + raw)
		return err == nil
	}
	if u.Scheme == "" || strings.Contains(u.Scheme, ".") {
		return true
	}
	port, _, _ := strings.Cut(u.Opaque, "/")
	return port != "" && strings.Trim(port, "0123456789") == ""
}

const siteColumns = `id, name, url, COALESCE(content, ''), COALESCE(updated, ''), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (Site, error) {
	var s Site
	err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Content, &s.Updated, &s.CreatedAt)
	return s, err
}

// ------------------------------
// Site methods
// ------------------------------

func (db *DB) GetSite(ctx context.Context, id string) (Site, error) {
	s, err := scanSite(db.queryRow(ctx, "SELECT "+siteColumns+" FROM sites WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Site{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Site{}, fmt.Errorf("failed to get site: %w", err)
	}
	return s, nil
}

// AddSite validates and inserts a new site, returning the stored record.
// Emits a SiteCreatedEvent after successful insert.
func (db *DB) AddSite(ctx context.Context, name, url string) (Site, error) {
	if err := ValidateSite(name, url); err != nil {
		return Site{}, err
	}

	s := Site{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       url,
		CreatedAt: time.Now().UTC().Format(TimeLayout),
	}
	if _, err := db.exec(ctx,
		"INSERT INTO sites (id, name, url, created_at) VALUES (?, ?, ?, ?)",
		s.ID, s.Name, s.URL, s.CreatedAt,
	); err != nil {
		return Site{}, fmt.Errorf("failed to add site: %w", err)
	}

	db.emit(SiteCreatedEvent{Site: s})
	return s, nil
}

// ListSites returns at most limit sites starting after skip, oldest first.
// A limit <= 0 returns every site from skip onwards.
func (db *DB) ListSites(ctx context.Context, skip, limit int) ([]Site, error) {
	if skip < 0 {
		skip = 0
	}
	query := "SELECT " + siteColumns + " FROM sites ORDER BY created_at ASC, id ASC"
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.query(ctx, query+" LIMIT ? OFFSET ?", limit, skip)
	} else if skip > 0 {
		// SQLite requires a LIMIT before OFFSET; -1 means unbounded there.
		if db.dialect == DialectPostgres {
			rows, err = db.query(ctx, query+" OFFSET ?", skip)
		} else {
			rows, err = db.query(ctx, query+" LIMIT -1 OFFSET ?", skip)
		}
	} else {
		rows, err = db.query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			db.log.Warn("failed to close rows", "error", err)
		}
	}()

	out := []Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return out, nil
}

// ListAllSites returns every site.
func (db *DB) ListAllSites(ctx context.Context) ([]Site, error) {
	return db.ListSites(ctx, 0, 0)
}

func (db *DB) CountSites(ctx context.Context) (int, error) {
	var n int
	if err := db.queryRow(ctx, "SELECT COUNT(*) FROM sites").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return n, nil
}

// UpdateSite applies a partial update and returns the stored record.
// Emits a SiteUpdatedEvent after successful update.
func (db *DB) UpdateSite(ctx context.Context, id string, in SiteUpdate) (Site, error) {
	current, err := db.GetSite(ctx, id)
	if err != nil {
		return Site{}, err
	}
	if in.Name != nil {
		current.Name = *in.Name
	}
	if in.URL != nil {
		current.URL = *in.URL
	}
	if err := ValidateSite(current.Name, current.URL); err != nil {
		return Site{}, err
	}

	res, err := db.exec(ctx, "UPDATE sites SET name = ?, url = ? WHERE id = ?", current.Name, current.URL, id)
	if err != nil {
		return Site{}, fmt.Errorf("failed to update site: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return Site{}, err
	}

	db.emit(SiteUpdatedEvent{Site: current})
	return current, nil
}

// DeleteSite removes a site.
// Emits a SiteDeletedEvent after successful deletion.
func (db *DB) DeleteSite(ctx context.Context, id string) error {
	// Fetch site before deletion to include in event
	s, _ := db.GetSite(ctx, id)

	res, err := db.exec(ctx, "DELETE FROM sites WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = id
	}
	db.emit(SiteDeletedEvent{Site: s})
	return nil
}

// SaveSiteContent stores refreshed content and stamps the updated time.
// Emits a SiteContentSavedEvent after successful save.
func (db *DB) SaveSiteContent(ctx context.Context, id string, content string, updated time.Time) error {
	updatedStr := updated.UTC().Format(TimeLayout)
	res, err := db.exec(ctx, "UPDATE sites SET content = ?, updated = ? WHERE id = ?", content, updatedStr, id)
	if err != nil {
		return fmt.Errorf("failed to save site content: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return err
	}

	db.emit(SiteContentSavedEvent{SiteID: id, Updated: updatedStr})
	return nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
