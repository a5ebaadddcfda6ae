package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation          = "23505"
	referenceConstraint      = "appointments_booking_reference_key"
	activeAgentSlotIndexName = "appointments_agent_slot_active_idx"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithQuerier(q querier) *PgRepository {
	return &PgRepository{pool: q}
}

const appointmentColumns = `id, booking_reference, citizen_id, citizen_name, nic, email, phone,
	service_type, department, date, time, priority, agent_id, office_name, status,
	citizen_notes, agent_notes, required_documents, documents, qr_code,
	submitted_date, confirmed_date, completed_date, cancelled_date, cancellation_reason,
	last_modified_by, email_sent, email_sent_at, sms_sent, sms_sent_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a           Appointment
		serviceType string
		priority    string
		status      string
		docsRaw     []byte
		qrRaw       []byte
	)

	err := row.Scan(
		&a.ID,
		&a.BookingReference,
		&a.CitizenID,
		&a.CitizenName,
		&a.NIC,
		&a.Email,
		&a.Phone,
		&serviceType,
		&a.Department,
		&a.Date,
		&a.Time,
		&priority,
		&a.AgentID,
		&a.OfficeName,
		&status,
		&a.CitizenNotes,
		&a.AgentNotes,
		&a.RequiredDocuments,
		&docsRaw,
		&qrRaw,
		&a.SubmittedDate,
		&a.ConfirmedDate,
		&a.CompletedDate,
		&a.CancelledDate,
		&a.CancellationReason,
		&a.LastModifiedBy,
		&a.EmailSent,
		&a.EmailSentAt,
		&a.SMSSent,
		&a.SMSSentAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ServiceType = ServiceType(serviceType)
	a.Priority = Priority(priority)
	a.Status = Status(status)
	a.Date = CalendarDate(a.Date)

	if len(docsRaw) > 0 {
		var docs []Document
		if err := json.Unmarshal(docsRaw, &docs); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		a.SetDocuments(docs)
	}
	if len(qrRaw) > 0 && string(qrRaw) != "null" {
		var qr QRArtifact
		if err := json.Unmarshal(qrRaw, &qr); err != nil {
			return nil, fmt.Errorf("decode qr code: %w", err)
		}
		a.QRCode = &qr
	}

	return &a, nil
}

func (r *PgRepository) queryAppointments(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func encodeJSONColumns(a *Appointment) (docs []byte, qr []byte, err error) {
	list := a.Documents()
	docs, err = json.Marshal(list)
	if err != nil {
		return nil, nil, fmt.Errorf("encode documents: %w", err)
	}
	if a.QRCode != nil {
		qr, err = json.Marshal(a.QRCode)
		if err != nil {
			return nil, nil, fmt.Errorf("encode qr code: %w", err)
		}
	}
	return docs, qr, nil
}

func requiredDocs(a *Appointment) []string {
	if a.RequiredDocuments == nil {
		return []string{}
	}
	return a.RequiredDocuments
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByReference(ctx context.Context, ref string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE booking_reference = $1
	`, ref)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveForAgentSlot(ctx context.Context, agentID string, date time.Time, clock string) ([]Appointment, error) {
	return r.queryAppointments(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE agent_id = $1
		  AND date = $2
		  AND time = $3
		  AND status IN ('pending', 'confirmed')
	`, agentID, date, clock)
}

func (r *PgRepository) ListByCitizen(ctx context.Context, citizenID string, limit, offset int) ([]Appointment, error) {
	return r.queryAppointments(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE citizen_id = $1
		ORDER BY date DESC, time DESC
		LIMIT $2 OFFSET $3
	`, citizenID, limit, offset)
}

func (r *PgRepository) ListForDepartmentOn(ctx context.Context, department string, date time.Time) ([]Appointment, error) {
	return r.queryAppointments(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE (department = $1 OR department = '')
		  AND date = $2
		ORDER BY time ASC, priority DESC
	`, department, date)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	docs, qr, err := encodeJSONColumns(a)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
	`,
		a.ID, a.BookingReference, a.CitizenID, a.CitizenName, a.NIC, a.Email, a.Phone,
		string(a.ServiceType), a.Department, a.Date, a.Time, string(a.Priority), a.AgentID, a.OfficeName, string(a.Status),
		a.CitizenNotes, a.AgentNotes, requiredDocs(a), docs, qr,
		a.SubmittedDate, a.ConfirmedDate, a.CompletedDate, a.CancelledDate, a.CancellationReason,
		a.LastModifiedBy, a.EmailSent, a.EmailSentAt, a.SMSSent, a.SMSSentAt, a.UpdatedAt,
	)
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case referenceConstraint:
			return ErrDuplicateReference
		case activeAgentSlotIndexName:
			return ErrSlotConflict
		}
	}
	return fmt.Errorf("insert appointment: %w", err)
}

// UpdateAppointment never rewrites booking_reference or submitted_date.
func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment, expected Status) error {
	docs, qr, err := encodeJSONColumns(a)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET department = $2,
		    date = $3,
		    time = $4,
		    priority = $5,
		    agent_id = $6,
		    office_name = $7,
		    status = $8,
		    citizen_notes = $9,
		    agent_notes = $10,
		    required_documents = $11,
		    documents = $12,
		    qr_code = $13,
		    confirmed_date = $14,
		    completed_date = $15,
		    cancelled_date = $16,
		    cancellation_reason = $17,
		    last_modified_by = $18,
		    email_sent = $19,
		    email_sent_at = $20,
		    sms_sent = $21,
		    sms_sent_at = $22,
		    updated_at = $23
		WHERE id = $1
		  AND status = $24
	`,
		a.ID, a.Department, a.Date, a.Time, string(a.Priority), a.AgentID, a.OfficeName, string(a.Status),
		a.CitizenNotes, a.AgentNotes, requiredDocs(a), docs, qr,
		a.ConfirmedDate, a.CompletedDate, a.CancelledDate, a.CancellationReason,
		a.LastModifiedBy, a.EmailSent, a.EmailSentAt, a.SMSSent, a.SMSSentAt, a.UpdatedAt,
		string(expected),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeAgentSlotIndexName {
			return ErrSlotConflict
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleAppointment
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
