package admin

import (
	"fmt"
	"strings"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sukalov/lyricstudio/internal/bot"
	"github.com/sukalov/lyricstudio/internal/studio"
	"github.com/sukalov/lyricstudio/internal/users"
)

type AdminHandlers struct {
	manager *studio.Manager
	chats   *users.Manager
	admins  map[string]bool

	closeInProgress atomic.Bool
}

func NewAdminHandlers(manager *studio.Manager, chats *users.Manager, adminUsernames []string) *AdminHandlers {
	admins := make(map[string]bool)
	for _, username := range adminUsernames {
		if username = strings.TrimPrefix(strings.TrimSpace(username), "@"); username != "" {
			admins[username] = true
		}
	}

	return &AdminHandlers{
		manager: manager,
		chats:   chats,
		admins:  admins,
	}
}

func (h *AdminHandlers) isAdmin(from *tgbotapi.User) bool {
	return from != nil && h.admins[from.UserName]
}

func (h *AdminHandlers) sessionsHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	if !h.isAdmin(message.From) {
		return b.SendMessage(message.Chat.ID, "you are not an admin")
	}

	ids := h.manager.IDs()
	if len(ids) == 0 {
		return b.SendMessage(message.Chat.ID, "no open sessions")
	}

	var text strings.Builder
	onboarding := len(h.chats.InStage(users.StageChoosingGenre)) + len(h.chats.InStage(users.StageCalibrating))
	fmt.Fprintf(&text, "open sessions: %d, chats: %d (%d onboarding)\n\n", len(ids), h.chats.Len(), onboarding)
	for idx, id := range ids {
		sess, ok := h.manager.Get(id)
		if !ok {
			continue
		}
		st := sess.Snapshot()
		fmt.Fprintf(&text, "%d. %s\n   genre: %s\n   words: %d\n   auto: %t\n\n",
			idx+1, id, st.Context.Genre, len(strings.Fields(st.Lyrics)), st.AutoSuggest)
	}

	return b.SendMessage(message.Chat.ID, text.String())
}

func (h *AdminHandlers) closeSessionsHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	if !h.isAdmin(message.From) {
		return b.SendMessage(message.Chat.ID, "you are not an admin")
	}

	h.closeInProgress.Store(true)
	return b.SendMessageWithButtons(message.Chat.ID, "every open session will be closed and unsaved lyrics lost. sure?",
		tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("close all", "confirm_close_sessions"),
				tgbotapi.NewInlineKeyboardButtonData("cancel", "abort_close_sessions"),
			),
		),
	)
}

func (h *AdminHandlers) confirmHandler(b *bot.Bot, update tgbotapi.Update) error {
	query := update.CallbackQuery
	if !h.isAdmin(query.From) {
		return nil
	}
	if h.closeInProgress.CompareAndSwap(true, false) {
		n := len(h.manager.IDs())
		h.manager.CloseAll()
		return b.SendMessage(query.From.ID, fmt.Sprintf("closed %d sessions", n))
	}
	return b.SendMessage(query.From.ID, "that button doesn't work anymore")
}

func (h *AdminHandlers) abortHandler(b *bot.Bot, update tgbotapi.Update) error {
	query := update.CallbackQuery
	if h.closeInProgress.CompareAndSwap(true, false) {
		return b.SendMessage(query.From.ID, "ok, cancelled")
	}
	return b.SendMessage(query.From.ID, "that button doesn't work anymore")
}

// SetupHandlers adds the admin commands to handlers.
func SetupHandlers(handlers *bot.Handlers, manager *studio.Manager, chats *users.Manager, adminUsernames []string) {
	admin := NewAdminHandlers(manager, chats, adminUsernames)

	if handlers.Commands == nil {
		handlers.Commands = make(map[string]bot.HandlerFunc)
	}
	if handlers.Callbacks == nil {
		handlers.Callbacks = make(map[string]bot.HandlerFunc)
	}

	handlers.Commands["sessions"] = admin.sessionsHandler
	handlers.Commands["close_sessions"] = admin.closeSessionsHandler
	handlers.Callbacks["confirm_close_sessions"] = admin.confirmHandler
	handlers.Callbacks["abort_close_sessions"] = admin.abortHandler
}
