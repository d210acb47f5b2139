// Package telegram adapts the dispatcher to the Telegram Bot API over long
// polling. It is the only package that knows about chat transports; the
// dispatcher works with plain messages and replies.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"infobroker/internal/dispatch"
)

const pollTimeoutSeconds = 60

// Bot is the long-polling transport. It implements dispatch.Sender.
type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// New authenticates against the Bot API. The dispatcher is attached later via
// Attach so both sides can be constructed without a cycle.
func New(token string, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authenticate bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return &Bot{api: api, logger: logger}, nil
}

// Attach wires the dispatcher that handles inbound messages.
func (b *Bot) Attach(d *dispatch.Dispatcher) { b.dispatcher = d }

// Run polls for updates until the context is cancelled. Messages are handed
// to the dispatcher synchronously so arrival order reaches its per-user
// queues intact; the dispatcher fans out across users from there.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
				continue
			}
			msg := dispatch.Message{
				UserID:    update.Message.From.ID,
				Username:  update.Message.From.UserName,
				FirstName: update.Message.From.FirstName,
				LastName:  update.Message.From.LastName,
				Text:      update.Message.Text,
			}
			b.dispatcher.Enqueue(ctx, msg)
		}
	}
}

// Send delivers one reply. Markdown is the rendering contract with the
// dispatcher's texts.
func (b *Bot) Send(_ context.Context, chatID int64, reply dispatch.Reply) error {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup, ok := keyboardMarkup(reply.Keyboard); ok {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func keyboardMarkup(k dispatch.Keyboard) (tgbotapi.ReplyKeyboardMarkup, bool) {
	switch k {
	case dispatch.KeyboardMain:
		return mainKeyboard(false), true
	case dispatch.KeyboardMainAdmin:
		return mainKeyboard(true), true
	case dispatch.KeyboardAdmin:
		return adminKeyboard(), true
	case dispatch.KeyboardCancel:
		return cancelKeyboard(), true
	}
	return tgbotapi.ReplyKeyboardMarkup{}, false
}

func mainKeyboard(withAdminRow bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonPhone),
			tgbotapi.NewKeyboardButton(dispatch.ButtonAadhaar),
			tgbotapi.NewKeyboardButton(dispatch.ButtonVehicle),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonIFSC),
			tgbotapi.NewKeyboardButton(dispatch.ButtonIP),
			tgbotapi.NewKeyboardButton(dispatch.ButtonPincode),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonCredits),
			tgbotapi.NewKeyboardButton(dispatch.ButtonBuy),
			tgbotapi.NewKeyboardButton(dispatch.ButtonHelp),
		),
	}
	if withAdminRow {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonAdminPanel),
		))
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	markup := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonUserStats),
			tgbotapi.NewKeyboardButton(dispatch.ButtonAllUsers),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonAddCredits),
			tgbotapi.NewKeyboardButton(dispatch.ButtonRemoveCredits),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonUltimate),
			tgbotapi.NewKeyboardButton(dispatch.ButtonSearchStats),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonBanUser),
			tgbotapi.NewKeyboardButton(dispatch.ButtonUnbanUser),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonProtectValue),
			tgbotapi.NewKeyboardButton(dispatch.ButtonProtectedList),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonBannedList),
			tgbotapi.NewKeyboardButton(dispatch.ButtonMainMenu),
		),
	)
	markup.ResizeKeyboard = true
	return markup
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	markup := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.ButtonCancel),
		),
	)
	markup.ResizeKeyboard = true
	return markup
}
