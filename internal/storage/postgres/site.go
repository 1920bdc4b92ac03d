package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"news_portal/internal/domain"
)

// SiteStore resolves the portal's canonical domain from the sites table.
type SiteStore struct {
	db     *sqlx.DB
	siteID int64
}

func NewSiteStore(db *sqlx.DB, siteID int64) *SiteStore {
	return &SiteStore{db: db, siteID: siteID}
}

func (s *SiteStore) CanonicalDomain(ctx context.Context) (string, error) {
	var domainName string
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &domainName,
		"SELECT domain FROM sites WHERE id = $1", s.siteID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	return domainName, err
}
