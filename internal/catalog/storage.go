package catalog

import (
	"context"
	"fmt"

	"periodqc/domain/catalog"
	"periodqc/internal"
	"periodqc/internal/config"
	"periodqc/internal/errors"
	"periodqc/internal/params"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store loads the catalog from a Postgres table carrying the same schema as
// the catalog file: star identifier, true and measured periods, status, and
// one column per registered quality parameter.
type Store struct {
	db       *sqlx.DB
	cfg      config.DatabaseConfig
	registry *params.Registry
	log      *internal.Logger
}

// NewStore opens the database connection and verifies it.
func NewStore(cfg config.DatabaseConfig, registry *params.Registry, log *internal.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to catalog database", err)
	}
	return &Store{db: db, cfg: cfg, registry: registry, log: log}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// storeRow mirrors the catalog table layout. Parameter columns are nullable:
// a NULL leaves the row usable for unconstrained queries.
type storeRow struct {
	Star           string   `db:"star"`
	TruePeriod     float64  `db:"prot"`
	MeasuredPeriod float64  `db:"prot_tess"`
	Status         string   `db:"status"`
	Power          *float64 `db:"power"`
	Tmag           *float64 `db:"tmag"`
	SNR            *float64 `db:"snr"`
}

// Load reads all catalog rows, validating invariants and skipping violations
// the same way the file loader does.
func (s *Store) Load(ctx context.Context) (*catalog.Catalog, error) {
	query := fmt.Sprintf(
		`SELECT star, prot, prot_tess, status, power, tmag, snr FROM %s ORDER BY star`,
		s.cfg.Table,
	)

	var records []storeRow
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, errors.DatabaseError("failed to query catalog table", err)
	}
	if len(records) == 0 {
		return nil, errors.CatalogError(fmt.Sprintf("catalog table %s is empty", s.cfg.Table), nil)
	}

	var rows []catalog.Row
	skipped := 0
	for _, rec := range records {
		status, err := catalog.ParseStatus(rec.Status)
		if err != nil {
			s.log.Warn("skipping star %s: %v", rec.Star, err)
			skipped++
			continue
		}

		row := catalog.Row{
			Star:           rec.Star,
			TruePeriod:     rec.TruePeriod,
			MeasuredPeriod: rec.MeasuredPeriod,
			Status:         status,
			Params:         make(map[string]float64, 3),
		}
		if rec.Power != nil {
			row.Params["power"] = *rec.Power
		}
		if rec.Tmag != nil {
			row.Params["Tmag"] = *rec.Tmag
		}
		if rec.SNR != nil {
			row.Params["snr"] = *rec.SNR
		}

		if err := row.Validate(); err != nil {
			s.log.Warn("skipping star %s: %v", rec.Star, err)
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.CatalogError("catalog table contains no valid rows", nil)
	}
	if skipped > 0 {
		s.log.Warn("catalog loaded with %d invalid rows skipped (%d kept)", skipped, len(rows))
	}
	s.log.Info("catalog loaded from %s: %d stars", s.cfg.Table, len(rows))

	return catalog.New(rows, s.registry.Columns()), nil
}
