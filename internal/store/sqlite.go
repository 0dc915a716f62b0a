package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/haral/audit-reports/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
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
	inputs                     TEXT NOT NULL,
	total_material_consumption REAL,
	annual_costs               REAL,
	co2_emissions              REAL,
	material_savings           REAL,
	cost_reduction             REAL,
	co2_reduction              REAL,
	stability_increase         REAL,
	deviations                 TEXT,
	document_path              TEXT NOT NULL DEFAULT '',
	created_at                 DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                 DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS report_alternatives (
	report_id        TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	film_thickness   REAL,
	prestretch       REAL,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Customers

const customerColumns = `id, company_name, contact_person, street, postal_code, city, phone, email, notes, logo_ref, created_at, updated_at`

func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyName, c.ContactPerson, c.Street, c.PostalCode, c.City,
		c.Phone, c.Email, c.Notes, c.LogoRef, now, now,
	)
	return eris.Wrap(err, "sqlite: insert customer")
}

func (s *SQLiteStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET company_name = ?, contact_person = ?, street = ?, postal_code = ?, city = ?,
		 phone = ?, email = ?, notes = ?, logo_ref = ?, updated_at = ? WHERE id = ?`,
		c.CompanyName, c.ContactPerson, c.Street, c.PostalCode, c.City,
		c.Phone, c.Email, c.Notes, c.LogoRef, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update customer %s", c.ID)
	}
	return checkRowsAffected(res, "customer", c.ID)
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, notFound("customer", id)
	}
	return c, eris.Wrapf(err, "sqlite: get customer %s", id)
}

func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY company_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list customers")
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan customer")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list customers iterate")
}

func (s *SQLiteStore) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete customer %s", id)
	}
	return checkRowsAffected(res, "customer", id)
}

// Reports

const reportColumns = `id, customer_id, user_id, title, audit_number, author, phone, email, status, inputs,
	total_material_consumption, annual_costs, co2_emissions, material_savings, cost_reduction,
	co2_reduction, stability_increase, deviations, document_path, created_at, updated_at`

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	row, err := encodeReport(r)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CustomerID, r.UserID, r.Title, r.AuditNumber, r.Author, r.Phone, r.Email,
		string(r.Status), row.inputs,
		r.Derived.TotalMaterialConsumption, r.Derived.AnnualCosts, r.Derived.CO2Emissions,
		r.Derived.MaterialSavings, r.Derived.CostReduction, r.Derived.CO2Reduction,
		r.Derived.StabilityIncrease, row.deviations, r.DocumentPath, now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrDuplicateAuditNumber, "audit number %s", r.AuditNumber)
		}
		return eris.Wrap(err, "sqlite: insert report")
	}

	if err := s.writeChildren(ctx, tx, r); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit report")
}

func (s *SQLiteStore) SaveReport(ctx context.Context, r *model.Report) error {
	r.UpdatedAt = time.Now().UTC()
	row, err := encodeReport(r)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE reports SET customer_id = ?, user_id = ?, title = ?, author = ?, phone = ?, email = ?,
		 inputs = ?, total_material_consumption = ?, annual_costs = ?, co2_emissions = ?,
		 material_savings = ?, cost_reduction = ?, co2_reduction = ?, stability_increase = ?,
		 deviations = ?, updated_at = ? WHERE id = ?`,
		r.CustomerID, r.UserID, r.Title, r.Author, r.Phone, r.Email, row.inputs,
		r.Derived.TotalMaterialConsumption, r.Derived.AnnualCosts, r.Derived.CO2Emissions,
		r.Derived.MaterialSavings, r.Derived.CostReduction, r.Derived.CO2Reduction,
		r.Derived.StabilityIncrease, row.deviations, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update report %s", r.ID)
	}
	if err := checkRowsAffected(res, "report", r.ID); err != nil {
		return err
	}

	for _, table := range []string{"report_alternatives", "report_images"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE report_id = ?`, r.ID); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}
	if err := s.writeChildren(ctx, tx, r); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit report")
}

func (s *SQLiteStore) SetReportStatus(ctx context.Context, id string, status model.ReportStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set status %s", id)
	}
	return checkRowsAffected(res, "report", id)
}

func (s *SQLiteStore) SetDocumentPath(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET document_path = ?, updated_at = ? WHERE id = ?`,
		path, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set document path %s", id)
	}
	return checkRowsAffected(res, "report", id)
}

func (s *SQLiteStore) AppendImage(ctx context.Context, reportID string, img model.Image) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE reports SET updated_at = ? WHERE id = ?`, time.Now().UTC(), reportID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch report %s", reportID)
	}
	if err := checkRowsAffected(res, "report", reportID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO report_images (report_id, position, file_ref, caption)
		 SELECT ?, COALESCE(MAX(position), -1) + 1, ?, ? FROM report_images WHERE report_id = ?`,
		reportID, img.FileRef, img.Caption, reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append image %s", reportID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit image")
}

func (s *SQLiteStore) writeChildren(ctx context.Context, tx *sql.Tx, r *model.Report) error {
	for i, a := range r.Alternatives {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO report_alternatives (report_id, position, film_thickness, prestretch, pallet_stability)
			 VALUES (?, ?, ?, ?, ?)`,
			r.ID, i, a.FilmThickness, a.Prestretch, a.PalletStability,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert alternative %d", i)
		}
	}
	for i, img := range r.Images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO report_images (report_id, position, file_ref, caption) VALUES (?, ?, ?, ?)`,
			r.ID, i, img.FileRef, img.Caption,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert image %d", i)
		}
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanSQLiteReport(row)
	if err == sql.ErrNoRows {
		return nil, notFound("report", id)
	}
	return r, eris.Wrapf(err, "sqlite: get report %s", id)
}

func (s *SQLiteStore) ListAlternatives(ctx context.Context, reportID string) ([]model.Alternative, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT film_thickness, prestretch, pallet_stability FROM report_alternatives
		 WHERE report_id = ? ORDER BY position`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list alternatives %s", reportID)
	}
	defer rows.Close()

	var out []model.Alternative
	for rows.Next() {
		var a model.Alternative
		var thickness, prestretch sql.NullFloat64
		if err := rows.Scan(&thickness, &prestretch, &a.PalletStability); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alternative")
		}
		a.FilmThickness = floatPtr(thickness)
		a.Prestretch = floatPtr(prestretch)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list alternatives iterate")
}

func (s *SQLiteStore) ListImages(ctx context.Context, reportID string) ([]model.Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_ref, caption FROM report_images WHERE report_id = ? ORDER BY position`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list images %s", reportID)
	}
	defer rows.Close()

	var out []model.Image
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.FileRef, &img.Caption); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan image")
		}
		out = append(out, img)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list images iterate")
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND (title LIKE ? OR audit_number LIKE ? OR author LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like, like)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		r, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) ReportStats(ctx context.Context) (*ReportStats, error) {
	stats := &ReportStats{ByStatus: make(map[model.ReportStatus]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count reports")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		stats.ByStatus[model.ReportStatus(status)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: count reports iterate")
	}

	var savings, cost, co2 sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT AVG(material_savings) FROM reports WHERE material_savings > 0),
			(SELECT AVG(cost_reduction) FROM reports WHERE cost_reduction > 0),
			(SELECT AVG(co2_reduction) FROM reports WHERE co2_reduction > 0)`,
	).Scan(&savings, &cost, &co2)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: average savings")
	}
	stats.AvgMaterialSavings = round1(savings.Float64)
	stats.AvgCostReduction = round1(cost.Float64)
	stats.AvgCO2Reduction = round1(co2.Float64)
	return stats, nil
}

func (s *SQLiteStore) DeleteReport(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"report_alternatives", "report_images"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE report_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete %s", table)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete report %s", id)
	}
	if err := checkRowsAffected(res, "report", id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCustomer(row scannable) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.CompanyName, &c.ContactPerson, &c.Street, &c.PostalCode, &c.City,
		&c.Phone, &c.Email, &c.Notes, &c.LogoRef, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanSQLiteReport(row scannable) (*model.Report, error) {
	var r model.Report
	var status, inputsJSON string
	var deviationsJSON sql.NullString
	var total, costs, co2, savings, costRed, co2Red, stability sql.NullFloat64

	err := row.Scan(&r.ID, &r.CustomerID, &r.UserID, &r.Title, &r.AuditNumber, &r.Author,
		&r.Phone, &r.Email, &status, &inputsJSON,
		&total, &costs, &co2, &savings, &costRed, &co2Red, &stability,
		&deviationsJSON, &r.DocumentPath, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Status = model.ReportStatus(status)
	r.Derived.TotalMaterialConsumption = floatPtr(total)
	r.Derived.AnnualCosts = floatPtr(costs)
	r.Derived.CO2Emissions = floatPtr(co2)
	r.Derived.MaterialSavings = floatPtr(savings)
	r.Derived.CostReduction = floatPtr(costRed)
	r.Derived.CO2Reduction = floatPtr(co2Red)
	r.Derived.StabilityIncrease = floatPtr(stability)

	if err := decodeReport(&r, []byte(inputsJSON), []byte(deviationsJSON.String)); err != nil {
		return nil, err
	}
	return &r, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// encodedReport holds the JSON columns of a report row.
type encodedReport struct {
	inputs     string
	deviations string
}

func encodeReport(r *model.Report) (encodedReport, error) {
	inputs, err := json.Marshal(r.Inputs)
	if err != nil {
		return encodedReport{}, eris.Wrap(err, "marshal report inputs")
	}
	devs, err := json.Marshal(r.Derived.Deviations)
	if err != nil {
		return encodedReport{}, eris.Wrap(err, "marshal deviations")
	}
	return encodedReport{inputs: string(inputs), deviations: string(devs)}, nil
}

func decodeReport(r *model.Report, inputs, deviations []byte) error {
	if err := json.Unmarshal(inputs, &r.Inputs); err != nil {
		return eris.Wrap(err, "unmarshal report inputs")
	}
	if len(deviations) > 0 && string(deviations) != "null" {
		if err := json.Unmarshal(deviations, &r.Derived.Deviations); err != nil {
			return eris.Wrap(err, "unmarshal deviations")
		}
	}
	return nil
}
