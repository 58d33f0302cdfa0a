package common

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sukalov/lyricstudio/internal/bot"
)

const helpText = `lyric studio commands:

/start - pick a genre and calibrate
/skip - skip calibration
/rhymes [word] - rhymes for a word, or for the last word you wrote
/suggest - next-line ideas
/lyrics - show the page
/auto - toggle suggestions when you pause
/persona - toggle artist mode
/beat - upload an instrumental (/beat off to drop it)
/import <link> - start from a lyrics page
/stats - your studio analytics
/clear - wipe the page

any other message is added to your lyrics as a new line`

func GetCommandHandlers() map[string]bot.HandlerFunc {
	return map[string]bot.HandlerFunc{
		"help": helpHandler,
	}
}

// GetCallbackHandlers returns common callback handlers
func GetCallbackHandlers() map[string]bot.HandlerFunc {
	return map[string]bot.HandlerFunc{}
}

func helpHandler(b *bot.Bot, update tgbotapi.Update) error {
	return b.SendMessage(update.Message.Chat.ID, helpText)
}
