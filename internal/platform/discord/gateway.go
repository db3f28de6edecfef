package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const handlerTimeout = 2 * time.Minute

// Gateway owns the Discord session, registers slash commands and feeds
// gateway events to a platform.Handler.
type Gateway struct {
	session  *discordgo.Session
	guildID  string
	commands []*discordgo.ApplicationCommand
	logger   *zap.Logger

	mu      sync.Mutex
	base    context.Context
	handler platform.Handler
	removes []func()
}

// NewSession creates a bot session with the intents the engine needs.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	return session, nil
}

// NewGateway builds a gateway. A non-empty guildID registers commands to that
// guild only, which takes effect immediately.
func NewGateway(session *discordgo.Session, guildID string, logger *zap.Logger, commands ...Command) *Gateway {
	g := &Gateway{session: session, guildID: guildID, logger: logger}
	for _, c := range commands {
		g.commands = append(g.commands, &discordgo.ApplicationCommand{Name: c.Name, Description: c.Description})
	}
	return g
}

// Command is a slash command to register.
type Command struct {
	Name        string
	Description string
}

// Start subscribes handler, opens the gateway connection and registers the
// slash commands.
func (g *Gateway) Start(ctx context.Context, handler platform.Handler) error {
	g.mu.Lock()
	g.base = ctx
	g.handler = handler
	g.removes = append(g.removes,
		g.session.AddHandler(g.onInteraction),
		g.session.AddHandler(g.onMessage),
	)
	g.mu.Unlock()

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	if len(g.commands) == 0 {
		return nil
	}
	appID := g.session.State.User.ID
	if _, err := g.session.ApplicationCommandBulkOverwrite(appID, g.guildID, g.commands); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	g.logger.Info("discord gateway connected",
		zap.String("user", g.session.State.User.Username),
		zap.Int("commands", len(g.commands)))
	return nil
}

// GuildIDs lists the guilds the bot is a member of.
func (g *Gateway) GuildIDs() []string {
	g.session.State.RLock()
	defer g.session.State.RUnlock()
	ids := make([]string, 0, len(g.session.State.Guilds))
	for _, guild := range g.session.State.Guilds {
		ids = append(ids, guild.ID)
	}
	return ids
}

// Close detaches handlers and closes the connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	for _, remove := range g.removes {
		remove()
	}
	g.removes = nil
	g.mu.Unlock()
	return g.session.Close()
}

func (g *Gateway) target() (context.Context, platform.Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.base, g.handler
}

func (g *Gateway) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	base, handler := g.target()
	if handler == nil {
		return
	}
	in, ok := fromInteraction(ic.Interaction)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(base, handlerTimeout)
	defer cancel()

	resp := &responder{session: s, interaction: ic.Interaction}
	// Everything except the close button may take longer than the
	// acknowledgement window, so acknowledge first and follow up.
	if !(in.Type == platform.InteractionComponent && in.CustomID == domain.ControlIDClose) {
		if err := resp.deferReply(ctx); err != nil {
			g.logger.Warn("interaction acknowledge failed", zap.String("custom_id", in.CustomID), zap.Error(err))
			return
		}
	}
	handler.HandleInteraction(ctx, in, resp)
}

func (g *Gateway) onMessage(_ *discordgo.Session, mc *discordgo.MessageCreate) {
	base, handler := g.target()
	if handler == nil || mc.Message == nil {
		return
	}
	msg := platform.InboundMessage{GuildID: mc.GuildID, Message: fromMessage(mc.Message)}
	if mc.Member != nil {
		msg.AuthorRoleIDs = append([]string{}, mc.Member.Roles...)
	}
	ctx, cancel := context.WithTimeout(base, handlerTimeout)
	defer cancel()
	handler.HandleMessage(ctx, msg)
}

func fromInteraction(i *discordgo.Interaction) (platform.Interaction, bool) {
	in := platform.Interaction{GuildID: i.GuildID, ChannelID: i.ChannelID}
	switch {
	case i.Member != nil:
		in.User = fromMember(i.Member)
	case i.User != nil:
		in.User = platform.Member{UserID: i.User.ID, Name: userName(i.User)}
	}
	if i.Message != nil {
		in.MessageID = i.Message.ID
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		in.Type = platform.InteractionCommand
		in.Command = i.ApplicationCommandData().Name
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		in.Type = platform.InteractionComponent
		in.CustomID = data.CustomID
		in.Values = data.Values
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		in.Type = platform.InteractionModalSubmit
		in.CustomID = data.CustomID
		in.Fields = modalFields(data.Components)
	default:
		return platform.Interaction{}, false
	}
	return in, true
}

func modalFields(rows []discordgo.MessageComponent) map[string]string {
	fields := map[string]string{}
	for _, row := range rows {
		actions, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range actions.Components {
			if input, ok := c.(*discordgo.TextInput); ok {
				fields[input.CustomID] = input.Value
			}
		}
	}
	return fields
}

// responder replies ephemerally, as a follow-up once the interaction has
// been acknowledged.
type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	deferred    bool
}

func (r *responder) deferReply(ctx context.Context) error {
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	r.deferred = true
	return nil
}

func (r *responder) Reply(ctx context.Context, content string) error {
	if r.deferred {
		_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		}, discordgo.WithContext(ctx))
		return err
	}
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
}

func (r *responder) Prompt(ctx context.Context, prompt platform.TextPrompt) error {
	if r.deferred {
		return errors.New("cannot prompt after acknowledging the interaction")
	}
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: prompt.ID,
			Title:    prompt.Title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    prompt.FieldID,
						Label:       prompt.Label,
						Style:       discordgo.TextInputParagraph,
						Placeholder: prompt.Placeholder,
						Required:    true,
						MaxLength:   1000,
					},
				}},
			},
		},
	}, discordgo.WithContext(ctx))
}
