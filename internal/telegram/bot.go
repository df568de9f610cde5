package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
)

// Command is a parsed slash command.
type Command struct {
	Name   string
	Args   []string
	ChatID int64
	UserID int64
}

// ParseCommand splits "/mark@ScoutBot link booked" into its name and
// arguments. Text that is not a command returns false.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

// HandlerFunc answers a command. A non-empty reply is sent back to the
// chat; an error is reported to the operator as text.
type HandlerFunc func(ctx context.Context, cmd Command) (string, error)

type route struct {
	handler HandlerFunc
	help    string
}

// Sender delivers text to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Bot routes commands from the single admin user to handlers.
type Bot struct {
	sender  Sender
	adminID int64
	routes  map[string]route
	logger  *slog.Logger
}

func NewBot(sender Sender, adminID int64, l *slog.Logger) *Bot {
	b := &Bot{
		sender:  sender,
		adminID: adminID,
		routes:  make(map[string]route),
		logger:  logger.Component(l, "bot"),
	}
	b.Handle("help", "list commands", func(ctx context.Context, cmd Command) (string, error) {
		return b.Help(), nil
	})
	return b
}

// Handle registers fn for /name.
func (b *Bot) Handle(name, help string, fn HandlerFunc) {
	b.routes[strings.ToLower(name)] = route{handler: fn, help: help}
}

// Help lists registered commands.
func (b *Bot) Help() string {
	names := make([]string, 0, len(b.routes))
	for name := range b.routes {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Commands:")
	for _, name := range names {
		fmt.Fprintf(&sb, "\n/%s - %s", name, b.routes[name].help)
	}
	return sb.String()
}

// HandleUpdate dispatches one update. Messages from anyone but the admin
// are dropped.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	msg := u.Message
	if msg == nil || msg.From == nil {
		return
	}
	if msg.From.ID != b.adminID {
		b.logger.Warn("ignoring message from unauthorized user", "user_id", msg.From.ID)
		return
	}

	cmd, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}
	cmd.ChatID = msg.Chat.ID
	cmd.UserID = msg.From.ID

	r, ok := b.routes[cmd.Name]
	if !ok {
		b.reply(ctx, cmd.ChatID, "Unknown command /"+cmd.Name+"\n\n"+b.Help())
		return
	}

	b.logger.Info("command", "name", cmd.Name, "args", len(cmd.Args))
	text, err := r.handler(ctx, cmd)
	if err != nil {
		b.logger.Error("command failed", "name", cmd.Name, "error", err)
		text = "Error: " + err.Error()
	}
	if text != "" {
		b.reply(ctx, cmd.ChatID, text)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Error("reply failed", "chat_id", chatID, "error", err)
	}
}

// Poller is the update source of a Bot.
type Poller interface {
	Poll(ctx context.Context, handle func(context.Context, Update)) error
}

// Serve polls p and dispatches updates until ctx is done or polling fails.
func (b *Bot) Serve(ctx context.Context, p Poller) error {
	return p.Poll(ctx, b.HandleUpdate)
}
