package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var storeTracer = otel.Tracer("cpr.internal.bookings")

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var recordColumns = []string{
	"id",
	"client_name",
	"email",
	"phone",
	"service",
	"participants",
	"booking_date",
	"booking_time",
	"status",
	"notes",
	"external_session_id",
	"created_at",
	"updated_at",
}

const upsertConflict = `ON CONFLICT (external_session_id) DO UPDATE SET
	client_name = COALESCE(NULLIF(EXCLUDED.client_name, ''), bookings.client_name),
	email = COALESCE(NULLIF(EXCLUDED.email, ''), bookings.email),
	phone = COALESCE(NULLIF(EXCLUDED.phone, ''), bookings.phone),
	service = COALESCE(NULLIF(EXCLUDED.service, ''), bookings.service),
	participants = CASE WHEN ? > 0 THEN EXCLUDED.participants ELSE bookings.participants END,
	booking_date = COALESCE(NULLIF(EXCLUDED.booking_date, ''), bookings.booking_date),
	booking_time = COALESCE(NULLIF(EXCLUDED.booking_time, ''), bookings.booking_time),
	status = COALESCE(NULLIF(?, ''), bookings.status),
	notes = COALESCE(NULLIF(EXCLUDED.notes, ''), bookings.notes),
	updated_at = EXCLUDED.updated_at`

// PostgresStore persists records in the bookings table.
type PostgresStore struct {
	db  querier
	now func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return newPostgresStoreWithQuerier(pool)
}

func newPostgresStoreWithQuerier(db querier) *PostgresStore {
	if db == nil {
		panic("bookings: querier required")
	}
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertBySessionID relies on the unique index on external_session_id so
// concurrent upserts for one session collapse into a single row.
func (s *PostgresStore) UpsertBySessionID(ctx context.Context, sessionID string, fields Fields) (*Record, bool, error) {
	if err := validateFields(fields); err != nil {
		return nil, false, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		rec, err := s.Create(ctx, fields)
		return rec, err == nil, err
	}

	ctx, span := storeTracer.Start(ctx, "bookings.upsert",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	defer span.End()

	rec := newRecord(uuid.NewString(), sessionID, fields, s.now())
	query, args, err := s.insert(rec).
		Suffix(upsertConflict, fields.Participants, string(fields.Status)).
		Suffix("RETURNING " + strings.Join(recordColumns, ", ") + ", (xmax = 0) AS inserted").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("bookings: build upsert: %w", err)
	}

	var out Record
	var inserted bool
	dest := append(scanTargets(&out), &inserted)
	if err := s.db.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert")
		return nil, false, fmt.Errorf("bookings: upsert: %w", err)
	}
	span.SetAttributes(attribute.String("cpr.booking_id", out.ID), attribute.Bool("cpr.created", inserted))
	return &out, inserted, nil
}

func (s *PostgresStore) Create(ctx context.Context, fields Fields) (*Record, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	rec := newRecord(uuid.NewString(), "", fields, s.now())
	query, args, err := s.insert(rec).
		Suffix("RETURNING " + strings.Join(recordColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("bookings: build insert: %w", err)
	}
	var out Record
	if err := s.db.QueryRow(ctx, query, args...).Scan(scanTargets(&out)...); err != nil {
		return nil, fmt.Errorf("bookings: insert: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	query, args, err := psql.Select(recordColumns...).
		From("bookings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("bookings: build get: %w", err)
	}
	return s.queryOne(ctx, "get", query, args)
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	b := psql.Select(recordColumns...).
		From("bookings").
		OrderBy("created_at ASC", "id ASC")
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": string(filter.Status)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("bookings: build list: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(scanTargets(&rec)...); err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: list rows: %w", err)
	}
	return out, nil
}

// Update sets only the non-empty fields, in one statement.
func (s *PostgresStore) Update(ctx context.Context, id string, fields Fields) (*Record, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	b := psql.Update("bookings")
	for _, col := range []struct {
		name  string
		value string
	}{
		{"client_name", fields.ClientName},
		{"email", fields.Email},
		{"phone", fields.Phone},
		{"service", fields.Service},
	} {
		if col.value != "" {
			b = b.Set(col.name, col.value)
		}
	}
	if fields.Participants > 0 {
		b = b.Set("participants", fields.Participants)
	}
	if fields.Date != "" {
		b = b.Set("booking_date", fields.Date)
	}
	if fields.Time != "" {
		b = b.Set("booking_time", fields.Time)
	}
	if fields.Status != "" {
		b = b.Set("status", string(fields.Status))
	}
	if fields.Notes != "" {
		b = b.Set("notes", fields.Notes)
	}
	query, args, err := b.
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(recordColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("bookings: build update: %w", err)
	}
	return s.queryOne(ctx, "update", query, args)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) (*Record, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.Update(ctx, id, Fields{Status: status})
}

func (s *PostgresStore) UpdateSchedule(ctx context.Context, id, date, tm string) (*Record, error) {
	return s.Update(ctx, id, Fields{Date: date, Time: tm})
}

func (s *PostgresStore) insert(rec *Record) sq.InsertBuilder {
	var sessionID any
	if rec.ExternalSessionID != "" {
		sessionID = rec.ExternalSessionID
	}
	return psql.Insert("bookings").
		Columns(recordColumns...).
		Values(
			rec.ID,
			rec.ClientName,
			rec.Email,
			rec.Phone,
			rec.Service,
			rec.Participants,
			rec.Date,
			rec.Time,
			string(rec.Status),
			rec.Notes,
			sessionID,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
}

func (s *PostgresStore) queryOne(ctx context.Context, op, query string, args []any) (*Record, error) {
	var rec Record
	if err := s.db.QueryRow(ctx, query, args...).Scan(scanTargets(&rec)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookings: %s: %w", op, err)
	}
	return &rec, nil
}

// scanTargets matches recordColumns. external_session_id is nullable.
func scanTargets(rec *Record) []any {
	return []any{
		&rec.ID,
		&rec.ClientName,
		&rec.Email,
		&rec.Phone,
		&rec.Service,
		&rec.Participants,
		&rec.Date,
		&rec.Time,
		&rec.Status,
		&rec.Notes,
		(*nullString)(&rec.ExternalSessionID),
		&rec.CreatedAt,
		&rec.UpdatedAt,
	}
}

// nullString scans NULL as the empty string.
type nullString string

func (n *nullString) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = ""
	case string:
		*n = nullString(v)
	case []byte:
		*n = nullString(v)
	default:
		return fmt.Errorf("bookings: cannot scan %T into string", src)
	}
	return nil
}
