package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `hn, full_name, status, responsible_staff_id, staff_email,
	history_note, appointment_date, appointment_time, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.HN, &r.FullName, &r.Status, &r.ResponsibleStaffID, &r.StaffEmail,
		&r.HistoryNote, &r.AppointmentDate, &r.AppointmentTime, &r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

func (r *repoPG) GetByHN(ctx context.Context, hn string) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM patient_record WHERE hn = $1`, hn))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %s: %w", hn, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", hn, err)
	}
	return rec, nil
}

// ApplyStatus runs the status update and history append in one transaction.
// The patient row is locked with FOR UPDATE so concurrent transitions on the
// same HN serialize at the store; other patients' rows stay untouched.
func (r *repoPG) ApplyStatus(ctx context.Context, hn string, toStatus Status, entry *HistoryEntry, extra *TransitionExtra) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM patient_record WHERE hn = $1 FOR UPDATE`, hn).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("patient %s: %w", hn, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock patient %s: %w", hn, err)
	}

	if extra != nil {
		_, err = tx.Exec(ctx, `
			UPDATE patient_record SET status = $2,
				history_note     = COALESCE($3, history_note),
				appointment_date = COALESCE($4, appointment_date),
				appointment_time = COALESCE($5, appointment_time),
				updated_at = NOW()
			WHERE hn = $1`,
			hn, toStatus, extra.History, extra.Date, extra.Time)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE patient_record SET status = $2, updated_at = NOW() WHERE hn = $1`,
			hn, toStatus)
	}
	if err != nil {
		return fmt.Errorf("update status for %s: %w", hn, err)
	}

	entry.ID = uuid.New()
	entry.HN = hn
	entry.ToStatus = toStatus
	err = tx.QueryRow(ctx, `
		INSERT INTO status_history (id, hn, to_status, changed_by, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		entry.ID, hn, toStatus, entry.ChangedBy, entry.Role).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history for %s: %w", hn, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition for %s: %w", hn, err)
	}
	return nil
}

func (r *repoPG) ListHistory(ctx context.Context, hn string) ([]*HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, hn, to_status, changed_by, role, created_at
		FROM status_history WHERE hn = $1 ORDER BY created_at ASC`, hn)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", hn, err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.HN, &e.ToStatus, &e.ChangedBy, &e.Role, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_record (hn, full_name, status, responsible_staff_id, staff_email)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.HN, rec.FullName, rec.Status, rec.ResponsibleStaffID, rec.StaffEmail)
	if err != nil {
		return fmt.Errorf("create patient %s: %w", rec.HN, err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordCols+` FROM patient_record ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
