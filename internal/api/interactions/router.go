// Package interactions routes chat-platform events into the ticket engine.
package interactions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Slash commands registered by the bot.
const (
	CommandPanel = "ticket_panel"
	CommandStats = "ticket_stats"
)

// TicketEngine is the part of the ticket service the router drives.
type TicketEngine interface {
	OpenTicket(ctx context.Context, req service.OpenRequest) (*domain.Ticket, error)
	Claim(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error)
	SetPriority(ctx context.Context, channelID string, actor domain.Actor, level domain.TicketPriority) (*domain.Ticket, error)
	Close(ctx context.Context, channelID string, actor domain.Actor, reason string) (*domain.Ticket, error)
	Reopen(ctx context.Context, channelID string, actor domain.Actor) (*domain.Ticket, error)
	RecordMessage(ctx context.Context, msg platform.InboundMessage) error
	Stats(ctx context.Context, guildID string) (*domain.TicketStats, error)
	PostPanel(ctx context.Context, channelID string) (string, error)
}

// StaffChecker decides staff membership.
type StaffChecker interface {
	IsStaff(ctx context.Context, guildID, userID string, roleIDs []string) (bool, error)
}

// BindingResolver finds the ticket channel a control message drives.
type BindingResolver interface {
	Resolve(messageID string) (string, bool)
}

// Router implements platform.Handler.
type Router struct {
	engine   TicketEngine
	staff    StaffChecker
	bindings BindingResolver
	logger   *zap.Logger
}

var _ platform.Handler = (*Router)(nil)

// NewRouter builds the router.
func NewRouter(engine TicketEngine, staff StaffChecker, bindings BindingResolver, logger *zap.Logger) *Router {
	return &Router{engine: engine, staff: staff, bindings: bindings, logger: logger}
}

// HandleInteraction answers every interaction exactly once, either with the
// outcome or with the specific reason it was rejected.
func (r *Router) HandleInteraction(ctx context.Context, in platform.Interaction, resp platform.Responder) {
	var (
		reply string
		err   error
	)
	switch in.Type {
	case platform.InteractionCommand:
		reply, err = r.handleCommand(ctx, in)
	case platform.InteractionComponent, platform.InteractionModalSubmit:
		reply, err = r.handleControl(ctx, in, resp)
	default:
		err = apperrors.NewValidationError("unsupported interaction", nil)
	}

	if err != nil {
		reply = UserMessage(err)
		if de := apperrors.ToDomainError(err); de.HTTPStatus >= 500 {
			r.logger.Error("interaction failed",
				zap.String("channel_id", in.ChannelID),
				zap.String("user_id", in.User.UserID),
				zap.String("custom_id", in.CustomID),
				zap.Error(err))
		}
	}
	if reply == "" {
		return
	}
	if err := resp.Reply(ctx, reply); err != nil {
		r.logger.Warn("interaction reply failed", zap.String("channel_id", in.ChannelID), zap.Error(err))
	}
}

// HandleMessage feeds activity and first-response tracking.
func (r *Router) HandleMessage(ctx context.Context, msg platform.InboundMessage) {
	if msg.AuthorBot || msg.GuildID == "" {
		return
	}
	if err := r.engine.RecordMessage(ctx, msg); err != nil {
		r.logger.Warn("record ticket message failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

func (r *Router) handleCommand(ctx context.Context, in platform.Interaction) (string, error) {
	if err := r.requireStaff(ctx, in); err != nil {
		return "", err
	}
	switch in.Command {
	case CommandPanel:
		if _, err := r.engine.PostPanel(ctx, in.ChannelID); err != nil {
			return "", err
		}
		return "Ticket panel posted.", nil
	case CommandStats:
		stats, err := r.engine.Stats(ctx, in.GuildID)
		if err != nil {
			return "", err
		}
		return FormatStats(stats), nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown command %q", in.Command), nil)
}

func (r *Router) handleControl(ctx context.Context, in platform.Interaction, resp platform.Responder) (string, error) {
	action, err := domain.ParseControlAction(in.CustomID, in.Values, in.Fields)
	if err != nil {
		return "", apperrors.NewValidationError(err.Error(), nil)
	}

	if !action.TicketScoped() {
		ticket, err := r.engine.OpenTicket(ctx, service.OpenRequest{
			GuildID:   in.GuildID,
			OwnerID:   in.User.UserID,
			OwnerName: in.User.Name,
			Kind:      action.TicketKind,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Your ticket is ready: <#%s>", ticket.ChannelID), nil
	}

	channelID, err := r.ticketChannel(in, action)
	if err != nil {
		return "", err
	}
	if err := r.requireStaff(ctx, in); err != nil {
		return "", err
	}
	actor := domain.Actor{ID: in.User.UserID, Name: in.User.Name, IsStaff: true}

	switch action.Kind {
	case domain.ControlClaim:
		if _, err := r.engine.Claim(ctx, channelID, actor); err != nil {
			return "", err
		}
		return "You claimed this ticket.", nil
	case domain.ControlSetPriority:
		if _, err := r.engine.SetPriority(ctx, channelID, actor, action.Priority); err != nil {
			return "", err
		}
		return fmt.Sprintf("Priority set to %s.", action.Priority), nil
	case domain.ControlClose:
		// The reason arrives later as a modal submit.
		err := resp.Prompt(ctx, platform.TextPrompt{
			ID:          domain.ControlIDCloseReason,
			Title:       "Close ticket",
			FieldID:     domain.CloseReasonField,
			Label:       "Reason",
			Placeholder: "Why is this ticket being closed?",
		})
		if err != nil {
			return "", apperrors.NewPlatformError("open close prompt", err)
		}
		return "", nil
	case domain.ControlCloseReason:
		if _, err := r.engine.Close(ctx, channelID, actor, action.Reason); err != nil {
			return "", err
		}
		return "Ticket closed.", nil
	case domain.ControlReopen:
		if _, err := r.engine.Reopen(ctx, channelID, actor); err != nil {
			return "", err
		}
		return "Ticket reopened.", nil
	}
	return "", apperrors.NewValidationError("unsupported control", nil)
}

// ticketChannel resolves the ticket a control acts on. Close reasons come
// from a modal opened inside the ticket channel, so they use that channel.
func (r *Router) ticketChannel(in platform.Interaction, action domain.ControlAction) (string, error) {
	if action.Kind == domain.ControlCloseReason {
		if in.ChannelID == "" {
			return "", apperrors.NewValidationError("close reason submitted outside a ticket", nil)
		}
		return in.ChannelID, nil
	}
	channelID, ok := r.bindings.Resolve(in.MessageID)
	if !ok {
		return "", apperrors.NewStaleControl(in.MessageID)
	}
	return channelID, nil
}

func (r *Router) requireStaff(ctx context.Context, in platform.Interaction) error {
	ok, err := r.staff.IsStaff(ctx, in.GuildID, in.User.UserID, in.User.RoleIDs)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewForbidden("staff only")
	}
	return nil
}

// UserMessage maps an error to the sentence shown to the user. Each error
// code gets its own wording so staff can tell rejections apart.
func UserMessage(err error) string {
	de := apperrors.ToDomainError(err)
	switch de.Code {
	case apperrors.CodeAlreadyOpen:
		if ch, _ := de.Details["channel_id"].(string); ch != "" {
			return fmt.Sprintf("You already have an open ticket of this kind: <#%s>", ch)
		}
		return "You already have an open ticket of this kind."
	case apperrors.CodeAlreadyClaimed:
		if by, _ := de.Details["claimed_by"].(string); by != "" {
			return fmt.Sprintf("This ticket is already claimed by <@%s>.", by)
		}
		return "This ticket is already claimed."
	case apperrors.CodeNotOpen:
		return "This ticket is not open."
	case apperrors.CodeNotClosed:
		return "Only closed tickets can be reopened."
	case apperrors.CodeTicketDeleted:
		return "This ticket has already been deleted."
	case apperrors.CodeNotFound:
		return "No ticket is linked to this channel."
	case apperrors.CodeValidation:
		return "Invalid request: " + de.Message
	case apperrors.CodeForbidden:
		return "Only staff can do that."
	case apperrors.CodeStaleControl:
		return "These controls are no longer active."
	case apperrors.CodeConfiguration:
		return "The ticket system is not fully configured: " + de.Message
	case apperrors.CodePlatform:
		return "The chat platform rejected the request. Please try again."
	case apperrors.CodeStore:
		return "Ticket storage is unavailable. Please try again later."
	}
	return "Something went wrong."
}

// FormatStats renders ticket statistics for a chat reply.
func FormatStats(s *domain.TicketStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Open: %d | Closed: %d | Deleted: %d\n", s.Open, s.Closed, s.Deleted)
	for _, kind := range domain.TicketKinds {
		fmt.Fprintf(&b, "Open %s: %d\n", kind, s.OpenByKind[kind])
	}
	fmt.Fprintf(&b, "Claimed: %d\n", s.Claimed)
	if s.Responded == 0 {
		b.WriteString("Average first response: n/a")
	} else {
		fmt.Fprintf(&b, "Average first response: %.0fs over %d tickets", s.AvgFirstResponseSeconds, s.Responded)
	}
	return b.String()
}
