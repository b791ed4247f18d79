package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budget/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Store on a single SQLite file.
//
// Money is stored as decimal TEXT and dates as YYYY-MM-DD TEXT. Rows whose
// amounts or dates cannot be parsed are logged and returned with zero values,
// so one corrupt row never fails a listing.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ---- credits ----

const creditColumns = `id, owner_id, name, principal, annual_rate, start_date, installment_count,
	end_date, periodic_payment, is_shared, is_settled_early, settled_installment_count, settled_at, created_at`

func (r *SQLiteRepository) CreateCredit(ctx context.Context, c core.Credit) (core.Credit, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO credits (`+creditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Principal.String(), c.AnnualRate.String(), c.StartDate.String(),
		c.InstallmentCount, c.EndDate.String(), c.PeriodicPayment.String(), c.IsShared,
		c.IsSettledEarly, c.SettledInstallmentCount, c.SettledAt.String(), c.CreatedAt)
	if err != nil {
		return core.Credit{}, fmt.Errorf("insert credit: %w", err)
	}
	slog.InfoContext(ctx, "Credit saved to SQLite", "id", c.ID, "owner_id", c.OwnerID, "installments", c.InstallmentCount)
	return c, nil
}

func (r *SQLiteRepository) GetCredit(ctx context.Context, id string) (core.Credit, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+creditColumns+` FROM credits WHERE id = ?`, id)
	c, err := scanCredit(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Credit{}, fmt.Errorf("credit %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Credit{}, fmt.Errorf("get credit: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCredit(ctx context.Context, c core.Credit) error {
	res, err := r.db.ExecContext(ctx, `UPDATE credits SET name = ?, principal = ?, annual_rate = ?,
		start_date = ?, installment_count = ?, end_date = ?, periodic_payment = ?, is_shared = ?,
		is_settled_early = ?, settled_installment_count = ?, settled_at = ? WHERE id = ?`,
		c.Name, c.Principal.String(), c.AnnualRate.String(), c.StartDate.String(), c.InstallmentCount,
		c.EndDate.String(), c.PeriodicPayment.String(), c.IsShared, c.IsSettledEarly,
		c.SettledInstallmentCount, c.SettledAt.String(), c.ID)
	if err != nil {
		return fmt.Errorf("update credit: %w", err)
	}
	return expectOneRow(res, "credit", c.ID)
}

func (r *SQLiteRepository) DeleteCredit(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "credits", "credit", id)
}

func (r *SQLiteRepository) ListCredits(ctx context.Context, ownerIDs []string) ([]core.Credit, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(ownerIDs)
	rows, err := r.db.QueryContext(ctx, `SELECT `+creditColumns+` FROM credits
		WHERE owner_id IN (`+in+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var out []core.Credit
	for rows.Next() {
		c, err := scanCredit(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCredit(ctx context.Context, s scanner) (core.Credit, error) {
	var (
		c                        core.Credit
		principal, rate, payment string
		start, end, settledAt    string
	)
	err := s.Scan(&c.ID, &c.OwnerID, &c.Name, &principal, &rate, &start, &c.InstallmentCount,
		&end, &payment, &c.IsShared, &c.IsSettledEarly, &c.SettledInstallmentCount, &settledAt, &c.CreatedAt)
	if err != nil {
		return core.Credit{}, err
	}
	c.Principal = parseDecimal(ctx, "credit", c.ID, "principal", principal)
	c.AnnualRate = parseDecimal(ctx, "credit", c.ID, "annual_rate", rate)
	c.PeriodicPayment = parseDecimal(ctx, "credit", c.ID, "periodic_payment", payment)
	c.StartDate = parseDate(ctx, "credit", c.ID, "start_date", start)
	c.EndDate = parseDate(ctx, "credit", c.ID, "end_date", end)
	c.SettledAt = parseDate(ctx, "credit", c.ID, "settled_at", settledAt)
	return c, nil
}

// ---- recurring charges ----

const chargeColumns = `id, owner_id, name, amount, frequency, beneficiary_id, is_shared, created_at`

func (r *SQLiteRepository) CreateCharge(ctx context.Context, c core.RecurringCharge) (core.RecurringCharge, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO recurring_charges (`+chargeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Amount.String(), string(c.Frequency), c.BeneficiaryID, c.IsShared, c.CreatedAt)
	if err != nil {
		return core.RecurringCharge{}, fmt.Errorf("insert recurring charge: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCharge(ctx context.Context, id string) (core.RecurringCharge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chargeColumns+` FROM recurring_charges WHERE id = ?`, id)
	c, err := scanCharge(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringCharge{}, fmt.Errorf("recurring charge %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.RecurringCharge{}, fmt.Errorf("get recurring charge: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCharge(ctx context.Context, c core.RecurringCharge) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_charges SET name = ?, amount = ?, frequency = ?,
		beneficiary_id = ?, is_shared = ? WHERE id = ?`,
		c.Name, c.Amount.String(), string(c.Frequency), c.BeneficiaryID, c.IsShared, c.ID)
	if err != nil {
		return fmt.Errorf("update recurring charge: %w", err)
	}
	return expectOneRow(res, "recurring charge", c.ID)
}

func (r *SQLiteRepository) DeleteCharge(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "recurring_charges", "recurring charge", id)
}

func (r *SQLiteRepository) ListCharges(ctx context.Context, ownerIDs []string) ([]core.RecurringCharge, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(ownerIDs)
	rows, err := r.db.QueryContext(ctx, `SELECT `+chargeColumns+` FROM recurring_charges
		WHERE owner_id IN (`+in+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring charges: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringCharge
	for rows.Next() {
		c, err := scanCharge(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring charge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCharge(ctx context.Context, s scanner) (core.RecurringCharge, error) {
	var c core.RecurringCharge
	var amount, frequency string
	if err := s.Scan(&c.ID, &c.OwnerID, &c.Name, &amount, &frequency, &c.BeneficiaryID, &c.IsShared, &c.CreatedAt); err != nil {
		return core.RecurringCharge{}, err
	}
	c.Amount = parseDecimal(ctx, "recurring_charge", c.ID, "amount", amount)
	c.Frequency = parseFrequency(ctx, "recurring_charge", c.ID, frequency)
	return c, nil
}

// ---- savings contributions ----

const savingsColumns = `id, owner_id, name, amount, frequency, start_date, beneficiary_id, is_shared, created_at`

func (r *SQLiteRepository) CreateSavings(ctx context.Context, s core.SavingsContribution) (core.SavingsContribution, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO savings_contributions (`+savingsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.Name, s.Amount.String(), string(s.Frequency), s.StartDate.String(),
		s.BeneficiaryID, s.IsShared, s.CreatedAt)
	if err != nil {
		return core.SavingsContribution{}, fmt.Errorf("insert savings contribution: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetSavings(ctx context.Context, id string) (core.SavingsContribution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+savingsColumns+` FROM savings_contributions WHERE id = ?`, id)
	s, err := scanSavings(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsContribution{}, fmt.Errorf("savings contribution %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.SavingsContribution{}, fmt.Errorf("get savings contribution: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) UpdateSavings(ctx context.Context, s core.SavingsContribution) error {
	res, err := r.db.ExecContext(ctx, `UPDATE savings_contributions SET name = ?, amount = ?, frequency = ?,
		start_date = ?, beneficiary_id = ?, is_shared = ? WHERE id = ?`,
		s.Name, s.Amount.String(), string(s.Frequency), s.StartDate.String(), s.BeneficiaryID, s.IsShared, s.ID)
	if err != nil {
		return fmt.Errorf("update savings contribution: %w", err)
	}
	return expectOneRow(res, "savings contribution", s.ID)
}

func (r *SQLiteRepository) DeleteSavings(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "savings_contributions", "savings contribution", id)
}

func (r *SQLiteRepository) ListSavings(ctx context.Context, ownerIDs []string) ([]core.SavingsContribution, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(ownerIDs)
	rows, err := r.db.QueryContext(ctx, `SELECT `+savingsColumns+` FROM savings_contributions
		WHERE owner_id IN (`+in+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list savings contributions: %w", err)
	}
	defer rows.Close()

	var out []core.SavingsContribution
	for rows.Next() {
		s, err := scanSavings(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan savings contribution: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSavings(ctx context.Context, sc scanner) (core.SavingsContribution, error) {
	var s core.SavingsContribution
	var amount, frequency, start string
	if err := sc.Scan(&s.ID, &s.OwnerID, &s.Name, &amount, &frequency, &start, &s.BeneficiaryID, &s.IsShared, &s.CreatedAt); err != nil {
		return core.SavingsContribution{}, err
	}
	s.Amount = parseDecimal(ctx, "savings_contribution", s.ID, "amount", amount)
	s.Frequency = parseFrequency(ctx, "savings_contribution", s.ID, frequency)
	s.StartDate = parseDate(ctx, "savings_contribution", s.ID, "start_date", start)
	return s, nil
}

// ---- incomes ----

const incomeColumns = `id, owner_id, contributor_user_id, description, amount, frequency, is_shared, created_at`

func (r *SQLiteRepository) CreateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	i.ID = uuid.NewString()
	i.CreatedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO incomes (`+incomeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.OwnerID, i.ContributorUserID, i.Description, i.Amount.String(), string(i.Frequency), i.IsShared, i.CreatedAt)
	if err != nil {
		return core.Income{}, fmt.Errorf("insert income: %w", err)
	}
	return i, nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, id string) (core.Income, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+incomeColumns+` FROM incomes WHERE id = ?`, id)
	i, err := scanIncome(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("get income: %w", err)
	}
	return i, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, i core.Income) error {
	res, err := r.db.ExecContext(ctx, `UPDATE incomes SET contributor_user_id = ?, description = ?, amount = ?,
		frequency = ?, is_shared = ? WHERE id = ?`,
		i.ContributorUserID, i.Description, i.Amount.String(), string(i.Frequency), i.IsShared, i.ID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return expectOneRow(res, "income", i.ID)
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "incomes", "income", id)
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, ownerIDs []string) ([]core.Income, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(ownerIDs)
	rows, err := r.db.QueryContext(ctx, `SELECT `+incomeColumns+` FROM incomes
		WHERE owner_id IN (`+in+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		i, err := scanIncome(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanIncome(ctx context.Context, s scanner) (core.Income, error) {
	var i core.Income
	var amount, frequency string
	if err := s.Scan(&i.ID, &i.OwnerID, &i.ContributorUserID, &i.Description, &amount, &frequency, &i.IsShared, &i.CreatedAt); err != nil {
		return core.Income{}, err
	}
	i.Amount = parseDecimal(ctx, "income", i.ID, "amount", amount)
	i.Frequency = parseFrequency(ctx, "income", i.ID, frequency)
	return i, nil
}

// ---- collaborations ----

const collaborationColumns = `id, inviter_id, invitee_id, status, created_at`

func (r *SQLiteRepository) CreateCollaboration(ctx context.Context, c core.Collaboration) (core.Collaboration, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO collaborations (`+collaborationColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.InviterID, c.InviteeID, string(c.Status), c.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.Collaboration{}, fmt.Errorf("collaboration %s -> %s: %w", c.InviterID, c.InviteeID, core.ErrDuplicateInvite)
		}
		return core.Collaboration{}, fmt.Errorf("insert collaboration: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCollaboration(ctx context.Context, id string) (core.Collaboration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+collaborationColumns+` FROM collaborations WHERE id = ?`, id)
	c, err := scanCollaboration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Collaboration{}, fmt.Errorf("collaboration %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Collaboration{}, fmt.Errorf("get collaboration: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCollaborationStatus(ctx context.Context, id string, status core.CollaborationStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE collaborations SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update collaboration: %w", err)
	}
	return expectOneRow(res, "collaboration", id)
}

func (r *SQLiteRepository) DeleteCollaboration(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "collaborations", "collaboration", id)
}

func (r *SQLiteRepository) ListCollaborations(ctx context.Context, userID string) ([]core.Collaboration, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+collaborationColumns+` FROM collaborations
		WHERE inviter_id = ? OR invitee_id = ? ORDER BY created_at, id`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list collaborations: %w", err)
	}
	defer rows.Close()

	var out []core.Collaboration
	for rows.Next() {
		c, err := scanCollaboration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collaboration: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCollaboration(s scanner) (core.Collaboration, error) {
	var c core.Collaboration
	var status string
	if err := s.Scan(&c.ID, &c.InviterID, &c.InviteeID, &status, &c.CreatedAt); err != nil {
		return core.Collaboration{}, err
	}
	c.Status = core.CollaborationStatus(status)
	return c, nil
}

// ListUserIDs returns every owner of a ledger record and every collaboration
// participant, sorted.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner_id FROM credits
		UNION SELECT owner_id FROM recurring_charges
		UNION SELECT owner_id FROM savings_contributions
		UNION SELECT owner_id FROM incomes
		UNION SELECT inviter_id FROM collaborations
		UNION SELECT invitee_id FROM collaborations
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- helpers ----

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, table, kind, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return expectOneRow(res, kind, id)
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s rows affected: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(values)), ","), args
}

func parseDecimal(ctx context.Context, kind, id, field, raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		slog.WarnContext(ctx, "Unparsable amount, treating as zero",
			"record_kind", kind, "record_id", id, "field", field, "value", raw)
		return decimal.Zero
	}
	return d
}

func parseDate(ctx context.Context, kind, id, field, raw string) core.Date {
	if raw == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		slog.WarnContext(ctx, "Unparsable date, treating as missing",
			"record_kind", kind, "record_id", id, "field", field, "value", raw)
		return core.Date{}
	}
	return d
}

func parseFrequency(ctx context.Context, kind, id, raw string) core.Frequency {
	f := core.ParseFrequency(raw)
	if !f.IsKnown() {
		slog.WarnContext(ctx, "Unknown frequency, record contributes nothing",
			"record_kind", kind, "record_id", id, "frequency", raw)
	}
	return f
}
