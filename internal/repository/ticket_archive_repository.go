package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/community-bot/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// TicketArchiveRepository stores the records closed tickets leave behind.
type TicketArchiveRepository interface {
	Create(ctx context.Context, archive *domain.TicketArchive) error
	GetByTicketID(ctx context.Context, ticketID int64) (*domain.TicketArchive, error)
	ListByRequester(ctx context.Context, requester string, limit, offset int) ([]domain.TicketArchive, error)
	MaxTicketID(ctx context.Context) (int64, error)
}

type ticketArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewTicketArchiveRepository instantiates repository. A nil pool yields nil so
// callers can treat archiving as disabled.
func NewTicketArchiveRepository(pool *pgxpool.Pool) TicketArchiveRepository {
	if pool == nil {
		return nil
	}
	return &ticketArchiveRepository{pool: pool}
}

const archiveColumns = `ticket_id, requester_id, category, claimed_by, closed_by, channel_id,
               form_answers, transcript_name, transcript_digest, opened_at, closed_at`

func (r *ticketArchiveRepository) Create(ctx context.Context, archive *domain.TicketArchive) error {
	const query = `
        INSERT INTO ticket_archives (ticket_id, requester_id, category, claimed_by, closed_by, channel_id,
            form_answers, transcript_name, transcript_digest, opened_at, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (ticket_id) DO NOTHING`
	answers := archive.Answers
	if answers == nil {
		answers = []domain.FormAnswer{}
	}
	_, err := r.pool.Exec(ctx, query,
		archive.TicketID,
		archive.Requester,
		string(archive.Category),
		archive.ClaimedBy,
		archive.ClosedBy,
		string(archive.Channel),
		answers,
		archive.TranscriptName,
		archive.TranscriptDigest,
		archive.OpenedAt,
		archive.ClosedAt,
	)
	return err
}

func (r *ticketArchiveRepository) GetByTicketID(ctx context.Context, ticketID int64) (*domain.TicketArchive, error) {
	query := `SELECT ` + archiveColumns + ` FROM ticket_archives WHERE ticket_id=$1`
	archive, err := scanArchive(r.pool.QueryRow(ctx, query, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return archive, err
}

func (r *ticketArchiveRepository) ListByRequester(ctx context.Context, requester string, limit, offset int) ([]domain.TicketArchive, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + archiveColumns + `
        FROM ticket_archives WHERE requester_id=$1 ORDER BY closed_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, requester, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketArchive
	for rows.Next() {
		archive, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *archive)
	}
	return result, rows.Err()
}

func (r *ticketArchiveRepository) MaxTicketID(ctx context.Context) (int64, error) {
	var maxID int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(ticket_id), 0) FROM ticket_archives`).Scan(&maxID)
	return maxID, err
}

func scanArchive(row pgx.Row) (*domain.TicketArchive, error) {
	var (
		archive  domain.TicketArchive
		category string
		channel  string
	)
	if err := row.Scan(
		&archive.TicketID,
		&archive.Requester,
		&category,
		&archive.ClaimedBy,
		&archive.ClosedBy,
		&channel,
		&archive.Answers,
		&archive.TranscriptName,
		&archive.TranscriptDigest,
		&archive.OpenedAt,
		&archive.ClosedAt,
	); err != nil {
		return nil, err
	}
	archive.Category = domain.Category(category)
	archive.Channel = domain.ChannelRef(channel)
	return &archive, nil
}
