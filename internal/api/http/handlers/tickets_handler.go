package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const maxPageSize = 100

// TicketQueries is the read and repair surface the ops API needs.
type TicketQueries interface {
	ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, channelID string) (*domain.Ticket, error)
	Stats(ctx context.Context, guildID string) (*domain.TicketStats, error)
	Reconcile(ctx context.Context, extraGuilds ...string) (service.ReconcileReport, error)
}

// HistoryReader returns a ticket's recorded lifecycle.
type HistoryReader interface {
	History(ctx context.Context, channelID string) ([]domain.TicketHistory, error)
}

// TicketsHandler serves the operator endpoints.
type TicketsHandler struct {
	tickets        TicketQueries
	history        HistoryReader
	metrics        *observability.Metrics
	defaultGuildID string
}

// NewTicketsHandler constructs handler. defaultGuildID is used by /stats
// when the query names no guild.
func NewTicketsHandler(tickets TicketQueries, history HistoryReader, metrics *observability.Metrics, defaultGuildID string) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, history: history, metrics: metrics, defaultGuildID: defaultGuildID}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	filter := repository.TicketFilter{
		Statuses: query.Statuses,
		Kinds:    query.Kinds,
		Limit:    query.PageSize,
		Offset:   (query.Page - 1) * query.PageSize,
	}
	if query.GuildID != "" {
		filter.GuildID = &query.GuildID
	}
	if query.OwnerID != "" {
		filter.OwnerID = &query.OwnerID
	}

	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"page": query.Page, "page_size": query.PageSize},
	})
}

// GetTicket GET /tickets/:channel_id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("channel_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetHistory GET /tickets/:channel_id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	channelID := c.Params("channel_id")
	if _, err := h.tickets.GetTicket(c.UserContext(), channelID); err != nil {
		return err
	}
	entries, err := h.history.History(c.UserContext(), channelID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewTicketHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	guildID := c.Query("guild_id", h.defaultGuildID)
	if guildID == "" {
		return apperrors.NewValidationError("guild_id required", nil)
	}
	stats, err := h.tickets.Stats(c.UserContext(), guildID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Reconcile POST /reconcile.
func (h *TicketsHandler) Reconcile(c *fiber.Ctx) error {
	var guilds []string
	if h.defaultGuildID != "" {
		guilds = append(guilds, h.defaultGuildID)
	}
	report, err := h.tickets.Reconcile(c.UserContext(), guilds...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report, "meta": fiber.Map{"repairs": report.Repairs()}})
}

// Metrics GET /metrics.
func (h *TicketsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	query := dto.TicketListQuery{
		GuildID:  c.Query("guild_id"),
		OwnerID:  c.Query("owner_id"),
		Page:     parseInt(c.Query("page"), 1),
		PageSize: min(parseInt(c.Query("page_size"), 20), maxPageSize),
	}
	for _, part := range splitList(c.Query("status")) {
		status := domain.TicketStatus(part)
		if !status.Valid() {
			return query, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
		}
		query.Statuses = append(query.Statuses, status)
	}
	for _, part := range splitList(c.Query("kind")) {
		kind := domain.TicketKind(part)
		if !kind.Valid() {
			return query, apperrors.NewValidationError("unknown kind", map[string]any{"kind": part})
		}
		query.Kinds = append(query.Kinds, kind)
	}
	return query, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
