package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/haral/audit-reports/internal/db"
	"github.com/haral/audit-reports/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_customer": `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`,
	"get_report":   `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`,
	"list_alternatives": `SELECT film_thickness, prestretch, pallet_stability FROM report_alternatives
		WHERE report_id = $1 ORDER BY position`,
	"list_images": `SELECT file_ref, caption FROM report_images WHERE report_id = $1 ORDER BY position`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id             TEXT PRIMARY KEY,
	company_name   TEXT NOT NULL,
	contact_person TEXT NOT NULL DEFAULT '',
	street         TEXT NOT NULL DEFAULT '',
	postal_code    TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	logo_ref       TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id                         TEXT PRIMARY KEY,
	customer_id                TEXT NOT NULL REFERENCES customers(id),
	user_id                    TEXT NOT NULL DEFAULT '',
	title                      TEXT NOT NULL,
	audit_number               TEXT NOT NULL UNIQUE,
	author                     TEXT NOT NULL,
	phone                      TEXT NOT NULL DEFAULT '',
	email                      TEXT NOT NULL DEFAULT '',
	status                     TEXT NOT NULL DEFAULT 'draft',
	inputs                     JSONB NOT NULL,
	total_material_consumption DOUBLE PRECISION,
	annual_costs               DOUBLE PRECISION,
	co2_emissions              DOUBLE PRECISION,
	material_savings           DOUBLE PRECISION,
	cost_reduction             DOUBLE PRECISION,
	co2_reduction              DOUBLE PRECISION,
	stability_increase         DOUBLE PRECISION,
	deviations                 JSONB,
	document_path              TEXT NOT NULL DEFAULT '',
	created_at                 TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS report_alternatives (
	report_id        TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	film_thickness   DOUBLE PRECISION,
	prestretch       DOUBLE PRECISION,
	pallet_stability TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (report_id, position)
);

CREATE TABLE IF NOT EXISTS report_images (
	report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	file_ref  TEXT NOT NULL,
	caption   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (report_id, position)
);

CREATE INDEX IF NOT EXISTS idx_reports_customer_id ON reports(customer_id);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Customers

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.CompanyName, c.ContactPerson, c.Street, c.PostalCode, c.City,
		c.Phone, c.Email, c.Notes, c.LogoRef, now, now,
	)
	return eris.Wrap(err, "postgres: insert customer")
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE customers SET company_name = $1, contact_person = $2, street = $3, postal_code = $4, city = $5,
		 phone = $6, email = $7, notes = $8, logo_ref = $9, updated_at = $10 WHERE id = $11`,
		c.CompanyName, c.ContactPerson, c.Street, c.PostalCode, c.City,
		c.Phone, c.Email, c.Notes, c.LogoRef, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update customer %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("customer", c.ID)
	}
	return nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("customer", id)
	}
	return c, eris.Wrapf(err, "postgres: get customer %s", id)
}

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY company_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list customers")
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan customer")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list customers iterate")
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete customer %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("customer", id)
	}
	return nil
}

// Reports

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	row, err := encodeReport(r)
	if err != nil {
		return err
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO reports (`+reportColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			r.ID, r.CustomerID, r.UserID, r.Title, r.AuditNumber, r.Author, r.Phone, r.Email,
			string(r.Status), []byte(row.inputs),
			r.Derived.TotalMaterialConsumption, r.Derived.AnnualCosts, r.Derived.CO2Emissions,
			r.Derived.MaterialSavings, r.Derived.CostReduction, r.Derived.CO2Reduction,
			r.Derived.StabilityIncrease, []byte(row.deviations), r.DocumentPath, now, now,
		)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return eris.Wrapf(ErrDuplicateAuditNumber, "audit number %s", r.AuditNumber)
			}
			return eris.Wrap(err, "postgres: insert report")
		}
		return writePostgresChildren(ctx, tx, r)
	})
}

func (s *PostgresStore) SaveReport(ctx context.Context, r *model.Report) error {
	r.UpdatedAt = time.Now().UTC()
	row, err := encodeReport(r)
	if err != nil {
		return err
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE reports SET customer_id = $1, user_id = $2, title = $3, author = $4, phone = $5, email = $6,
				 inputs = $7, total_material_consumption = $8, annual_costs = $9, co2_emissions = $10,
			 material_savings = $11, cost_reduction = $12, co2_reduction = $13, stability_increase = $14,
			 deviations = $15, updated_at = $16 WHERE id = $17`,
			r.CustomerID, r.UserID, r.Title, r.Author, r.Phone, r.Email, []byte(row.inputs),
			r.Derived.TotalMaterialConsumption, r.Derived.AnnualCosts, r.Derived.CO2Emissions,
			r.Derived.MaterialSavings, r.Derived.CostReduction, r.Derived.CO2Reduction,
			r.Derived.StabilityIncrease, []byte(row.deviations), r.UpdatedAt, r.ID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update report %s", r.ID)
		}
		if tag.RowsAffected() == 0 {
			return notFound("report", r.ID)
		}

		for _, table := range []string{"report_alternatives", "report_images"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE report_id = $1`, r.ID); err != nil {
				return eris.Wrapf(err, "postgres: clear %s", table)
			}
		}
		return writePostgresChildren(ctx, tx, r)
	})
}

func (s *PostgresStore) SetReportStatus(ctx context.Context, id string, status model.ReportStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("report", id)
	}
	return nil
}

func (s *PostgresStore) SetDocumentPath(ctx context.Context, id, path string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET document_path = $1, updated_at = $2 WHERE id = $3`,
		path, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set document path %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("report", id)
	}
	return nil
}

func (s *PostgresStore) AppendImage(ctx context.Context, reportID string, img model.Image) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Row lock serializes concurrent appends to the same report.
		tag, err := tx.Exec(ctx,
			`UPDATE reports SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), reportID)
		if err != nil {
			return eris.Wrapf(err, "postgres: touch report %s", reportID)
		}
		if tag.RowsAffected() == 0 {
			return notFound("report", reportID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO report_images (report_id, position, file_ref, caption)
			 SELECT $1, COALESCE(MAX(position), -1) + 1, $2, $3 FROM report_images WHERE report_id = $1`,
			reportID, img.FileRef, img.Caption,
		)
		return eris.Wrapf(err, "postgres: append image %s", reportID)
	})
}

func writePostgresChildren(ctx context.Context, tx pgx.Tx, r *model.Report) error {
	for i, a := range r.Alternatives {
		_, err := tx.Exec(ctx,
			`INSERT INTO report_alternatives (report_id, position, film_thickness, prestretch, pallet_stability)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.ID, i, a.FilmThickness, a.Prestretch, a.PalletStability,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert alternative %d", i)
		}
	}
	for i, img := range r.Images {
		_, err := tx.Exec(ctx,
			`INSERT INTO report_images (report_id, position, file_ref, caption) VALUES ($1, $2, $3, $4)`,
			r.ID, i, img.FileRef, img.Caption,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert image %d", i)
		}
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := scanPostgresReport(s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("report", id)
	}
	return r, eris.Wrapf(err, "postgres: get report %s", id)
}

func (s *PostgresStore) ListAlternatives(ctx context.Context, reportID string) ([]model.Alternative, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT film_thickness, prestretch, pallet_stability FROM report_alternatives
		 WHERE report_id = $1 ORDER BY position`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list alternatives %s", reportID)
	}
	defer rows.Close()

	var out []model.Alternative
	for rows.Next() {
		var a model.Alternative
		if err := rows.Scan(&a.FilmThickness, &a.Prestretch, &a.PalletStability); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alternative")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list alternatives iterate")
}

func (s *PostgresStore) ListImages(ctx context.Context, reportID string) ([]model.Image, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT file_ref, caption FROM report_images WHERE report_id = $1 ORDER BY position`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list images %s", reportID)
	}
	defer rows.Close()

	var out []model.Image
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.FileRef, &img.Caption); err != nil {
			return nil, eris.Wrap(err, "postgres: scan image")
		}
		out = append(out, img)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list images iterate")
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND (title ILIKE $%d OR audit_number ILIKE $%d OR author ILIKE $%d)`, argIdx, argIdx, argIdx)
		args = append(args, "%"+filter.Query+"%")
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.CustomerID != "" {
		query += fmt.Sprintf(` AND customer_id = $%d`, argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, defaultLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		r, err := scanPostgresReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) ReportStats(ctx context.Context) (*ReportStats, error) {
	stats := &ReportStats{ByStatus: make(map[model.ReportStatus]int)}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count reports")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		stats.ByStatus[model.ReportStatus(status)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: count reports iterate")
	}

	var savings, cost, co2 *float64
	err = s.pool.QueryRow(ctx,
		`SELECT
			AVG(material_savings) FILTER (WHERE material_savings > 0),
			AVG(cost_reduction) FILTER (WHERE cost_reduction > 0),
			AVG(co2_reduction) FILTER (WHERE co2_reduction > 0)
		 FROM reports`,
	).Scan(&savings, &cost, &co2)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: average savings")
	}
	stats.AvgMaterialSavings = round1(deref(savings))
	stats.AvgCostReduction = round1(deref(cost))
	stats.AvgCO2Reduction = round1(deref(co2))
	return stats, nil
}

func (s *PostgresStore) DeleteReport(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"report_alternatives", "report_images"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE report_id = $1`, id); err != nil {
				return eris.Wrapf(err, "postgres: delete %s", table)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
		if err != nil {
			return eris.Wrapf(err, "postgres: delete report %s", id)
		}
		if tag.RowsAffected() == 0 {
			return notFound("report", id)
		}
		return nil
	})
}

func scanPostgresReport(row scannable) (*model.Report, error) {
	var r model.Report
	var status string
	var inputsJSON, deviationsJSON []byte

	err := row.Scan(&r.ID, &r.CustomerID, &r.UserID, &r.Title, &r.AuditNumber, &r.Author,
		&r.Phone, &r.Email, &status, &inputsJSON,
		&r.Derived.TotalMaterialConsumption, &r.Derived.AnnualCosts, &r.Derived.CO2Emissions,
		&r.Derived.MaterialSavings, &r.Derived.CostReduction, &r.Derived.CO2Reduction,
		&r.Derived.StabilityIncrease, &deviationsJSON, &r.DocumentPath, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.ReportStatus(status)
	if err := decodeReport(&r, inputsJSON, deviationsJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
