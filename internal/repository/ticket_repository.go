package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

var (
	// ErrNotFound is returned when no ticket matches.
	ErrNotFound = errors.New("ticket not found")
	// ErrChannelExists is returned when a ticket row already exists for the channel.
	ErrChannelExists = errors.New("ticket already exists for channel")
	// ErrOpenTicketExists is returned when the owner already holds an open ticket of the kind.
	ErrOpenTicketExists = errors.New("open ticket already exists for owner and kind")
	// ErrDuplicateNumber is returned when a ticket number is reused within a kind.
	ErrDuplicateNumber = errors.New("ticket number already used")
	// ErrPreconditionFailed is returned when a guarded update matched no row.
	ErrPreconditionFailed = errors.New("ticket update precondition failed")
)

const (
	constraintPrimaryKey = "tickets_pkey"
	constraintOpenOwner  = "tickets_one_open_per_owner"
	constraintNumber     = "tickets_num_per_kind"
	uniqueViolation      = "23505"
)

// TicketFilter narrows List results. Zero values are ignored; Limit <= 0
// returns every match.
type TicketFilter struct {
	GuildID            *string
	OwnerID            *string
	Kinds              []domain.TicketKind
	Statuses           []domain.TicketStatus
	LastActivityBefore *time.Time
	HasControlMessage  *bool
	Limit              int
	Offset             int
}

// TicketPatch is a partial update. Nil fields are left untouched.
//
// Write-once fields (ClaimedBy, FirstStaffResponseSeconds) only apply while
// still null, and deleted tickets never match. ExpectStatuses further
// restricts the current status the update may apply to; ExpectClosedAt
// requires closed_at to equal the given instant.
type TicketPatch struct {
	Status                    *domain.TicketStatus
	LastActivityAt            *time.Time
	ClaimedBy                 *string
	Priority                  *domain.TicketPriority
	FirstStaffResponseSeconds *int64
	ControlMessageID          *string
	ClosedAt                  *time.Time
	ClosedBy                  *string
	CloseReason               *string

	ExpectStatuses []domain.TicketStatus
	ExpectClosedAt *time.Time
}

// TicketRepository is the durable store for tickets and their counters.
// Every method is a single atomic statement.
type TicketRepository interface {
	NextTicketNumber(ctx context.Context, kind domain.TicketKind) (int, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	FindOpen(ctx context.Context, guildID, ownerID string, kind domain.TicketKind) (*domain.Ticket, error)
	GetByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error)
	Update(ctx context.Context, channelID string, patch TicketPatch) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context, guildID string) (*domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `channel_id, guild_id, owner_id, kind, ticket_num, status, created_at, last_activity_at,
       claimed_by, priority, first_staff_response_seconds, control_message_id, closed_at, closed_by, close_reason`

func (r *ticketRepository) NextTicketNumber(ctx context.Context, kind domain.TicketKind) (int, error) {
	const query = `
        INSERT INTO ticket_counters (kind, next_num) VALUES ($1, 1)
        ON CONFLICT (kind) DO UPDATE SET next_num = ticket_counters.next_num + 1
        RETURNING next_num`
	var num int
	if err := r.pool.QueryRow(ctx, query, kind).Scan(&num); err != nil {
		return 0, err
	}
	return num, nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO tickets (channel_id, guild_id, owner_id, kind, ticket_num, status, created_at, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
        RETURNING ` + ticketColumns
	row := r.pool.QueryRow(ctx, query,
		ticket.ChannelID,
		ticket.GuildID,
		ticket.OwnerID,
		ticket.Kind,
		ticket.Number,
		domain.TicketStatusOpen,
		ticket.CreatedAt,
	)
	created, err := scanTicket(row)
	if err != nil {
		return mapWriteError(err)
	}
	*ticket = *created
	return nil
}

func (r *ticketRepository) FindOpen(ctx context.Context, guildID, ownerID string, kind domain.TicketKind) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE guild_id=$1 AND owner_id=$2 AND kind=$3 AND status=$4`
	return r.fetchSingle(ctx, query, guildID, ownerID, kind, domain.TicketStatusOpen)
}

func (r *ticketRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) Update(ctx context.Context, channelID string, patch TicketPatch) (*domain.Ticket, error) {
	sets := []string{}
	args := []any{channelID}
	clauses := []string{"channel_id=$1", fmt.Sprintf("status<>'%s'", domain.TicketStatusDeleted)}

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.LastActivityAt != nil {
		set("last_activity_at", *patch.LastActivityAt)
	}
	if patch.ClaimedBy != nil {
		set("claimed_by", *patch.ClaimedBy)
		clauses = append(clauses, "claimed_by IS NULL")
	}
	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.FirstStaffResponseSeconds != nil {
		set("first_staff_response_seconds", *patch.FirstStaffResponseSeconds)
		clauses = append(clauses, "first_staff_response_seconds IS NULL")
	}
	if patch.ControlMessageID != nil {
		set("control_message_id", *patch.ControlMessageID)
	}
	if patch.ClosedAt != nil {
		set("closed_at", *patch.ClosedAt)
	}
	if patch.ClosedBy != nil {
		set("closed_by", *patch.ClosedBy)
	}
	if patch.CloseReason != nil {
		set("close_reason", *patch.CloseReason)
	}
	if len(sets) == 0 {
		return r.GetByChannelID(ctx, channelID)
	}
	if len(patch.ExpectStatuses) > 0 {
		placeholders := make([]string, len(patch.ExpectStatuses))
		for i, status := range patch.ExpectStatuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if patch.ExpectClosedAt != nil {
		args = append(args, *patch.ExpectClosedAt)
		clauses = append(clauses, fmt.Sprintf("closed_at=$%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), strings.Join(clauses, " AND "), ticketColumns)

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapWriteError(err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE channel_id=$1)`, channelID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrPreconditionFailed
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.GuildID != nil {
		args = append(args, *filter.GuildID)
		clauses = append(clauses, fmt.Sprintf("guild_id=$%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, kind := range filter.Kinds {
			args = append(args, kind)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.LastActivityBefore != nil {
		args = append(args, *filter.LastActivityBefore)
		clauses = append(clauses, fmt.Sprintf("last_activity_at < $%d", len(args)))
	}
	if filter.HasControlMessage != nil {
		if *filter.HasControlMessage {
			clauses = append(clauses, "control_message_id IS NOT NULL")
		} else {
			clauses = append(clauses, "control_message_id IS NULL")
		}
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at ASC, channel_id ASC`, base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Stats(ctx context.Context, guildID string) (*domain.TicketStats, error) {
	const totals = `
        SELECT
            COUNT(*) FILTER (WHERE status='open'),
            COUNT(*) FILTER (WHERE status='closed'),
            COUNT(*) FILTER (WHERE status='deleted'),
            COUNT(*) FILTER (WHERE claimed_by IS NOT NULL),
            COUNT(first_staff_response_seconds),
            COALESCE(AVG(first_staff_response_seconds), 0)::float8
        FROM tickets WHERE guild_id=$1`
	stats := &domain.TicketStats{OpenByKind: map[domain.TicketKind]int{}}
	if err := r.pool.QueryRow(ctx, totals, guildID).Scan(
		&stats.Open,
		&stats.Closed,
		&stats.Deleted,
		&stats.Claimed,
		&stats.Responded,
		&stats.AvgFirstResponseSeconds,
	); err != nil {
		return nil, err
	}

	const byKind = `SELECT kind, COUNT(*) FROM tickets WHERE guild_id=$1 AND status='open' GROUP BY kind`
	rows, err := r.pool.Query(ctx, byKind, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.OpenByKind[domain.TicketKind(kind)] = count
	}
	return stats, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		kind     string
		status   string
		priority *string
	)
	if err := row.Scan(
		&ticket.ChannelID,
		&ticket.GuildID,
		&ticket.OwnerID,
		&kind,
		&ticket.Number,
		&status,
		&ticket.CreatedAt,
		&ticket.LastActivityAt,
		&ticket.ClaimedBy,
		&priority,
		&ticket.FirstStaffResponseSeconds,
		&ticket.ControlMessageID,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
		&ticket.CloseReason,
	); err != nil {
		return nil, err
	}
	ticket.Kind = domain.TicketKind(kind)
	ticket.Status = domain.TicketStatus(status)
	if priority != nil {
		p := domain.TicketPriority(*priority)
		ticket.Priority = &p
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintPrimaryKey:
		return ErrChannelExists
	case constraintOpenOwner:
		return ErrOpenTicketExists
	case constraintNumber:
		return ErrDuplicateNumber
	}
	return err
}
