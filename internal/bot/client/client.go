package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sukalov/lyricstudio/internal/bot"
	"github.com/sukalov/lyricstudio/internal/bot/common"
	"github.com/sukalov/lyricstudio/internal/db"
	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/logger"
	"github.com/sukalov/lyricstudio/internal/lyrics"
	"github.com/sukalov/lyricstudio/internal/stats"
	"github.com/sukalov/lyricstudio/internal/studio"
	"github.com/sukalov/lyricstudio/internal/users"
)

const (
	sessionPrefix = "tg-"
	// telegram rejects longer messages
	maxMessageLen = 4000
	maxButtons    = 8
)

type Store interface {
	stats.Source
	SaveProfile(ctx context.Context, id, name string, p studio.Profile) error
}

type Importer interface {
	Import(ctx context.Context, url string) (*lyrics.Result, error)
}

type Deps struct {
	Manager  *studio.Manager
	Cadence  studio.CadenceAnalyzer
	Store    Store
	Importer Importer
	Chats    *users.Manager
}

type ClientHandlers struct {
	Deps
	bot *bot.Bot
	now func() time.Time
}

func NewClientHandlers(b *bot.Bot, deps Deps) *ClientHandlers {
	return &ClientHandlers{Deps: deps, bot: b, now: time.Now}
}

// SessionID is the studio session of a chat. It doubles as the writer id.
func SessionID(chatID int64) string {
	return sessionPrefix + strconv.FormatInt(chatID, 10)
}

func chatIDOf(sessionID string) (int64, bool) {
	raw, ok := strings.CutPrefix(sessionID, sessionPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

func (h *ClientHandlers) startHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message

	h.Chats.Put(users.ChatState{
		ChatID:   message.Chat.ID,
		Username: message.From.UserName,
		TgName:   strings.TrimSpace(message.From.FirstName + " " + message.From.LastName),
		Stage:    users.StageChoosingGenre,
	})

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, g := range generation.Genres {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(g.Title, "genre:"+string(g.ID)),
		))
	}

	var text strings.Builder
	text.WriteString("welcome to the studio. pick your lane:\n\n")
	for _, g := range generation.Genres {
		fmt.Fprintf(&text, "%s: %s\n", g.Title, strings.ToLower(g.Description))
	}
	return b.SendMessageWithButtons(message.Chat.ID, text.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *ClientHandlers) genreHandler(b *bot.Bot, update tgbotapi.Update) error {
	query := update.CallbackQuery
	chatID := query.Message.Chat.ID

	genre, ok := generation.ParseGenre(bot.CallbackArg(query.Data))
	if !ok {
		return b.SendMessage(chatID, "unknown genre")
	}

	updated := h.Chats.Update(chatID, func(st *users.ChatState) {
		st.Genre = genre
		st.Stage = users.StageCalibrating
	})
	if !updated {
		return b.SendMessage(chatID, "that button is stale, send /start again")
	}

	return b.SendMessage(chatID,
		"nice. now send me a voice note of you spitting a few bars so i can calibrate your cadence.\n\n/skip to go straight to the studio")
}

// voiceHandler scores a calibration take.
func (h *ClientHandlers) voiceHandler(b *bot.Bot, update tgbotapi.Update, st users.ChatState) error {
	message := update.Message
	voice := message.Voice

	mime := voice.MimeType
	if mime == "" {
		mime = "audio/ogg"
	}

	// without the take calibration falls back to reference scores
	var take *generation.Audio
	data, err := b.DownloadFile(context.Background(), voice.FileID)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to download calibration take for %d: %v", message.Chat.ID, err))
	} else if len(data) > 0 {
		take = &generation.Audio{Data: data, MIMEType: mime}
	}

	result := studio.Calibrate(context.Background(), h.Cadence, take)
	profile := h.profile(message.Chat.ID)
	profile.Genre = st.Genre
	profile = profile.WithCadence(result)

	if err := h.finishOnboarding(st, profile); err != nil {
		return err
	}
	return b.SendMessage(message.Chat.ID, fmt.Sprintf(
		"calibrated.\nrhyme %d%% · flow %d%% · energy %d%% · %d bpm\n%s\n\nsend me your lines and i'll keep up. /help for commands",
		result.RhymeScore, result.FlowScore, result.EnergyScore, result.BPM, result.Feedback))
}

func (h *ClientHandlers) skipHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	st, ok := h.Chats.Get(chatID)
	if !ok || st.Stage != users.StageCalibrating {
		return b.SendMessage(chatID, "nothing to skip")
	}

	profile := h.profile(chatID)
	profile.Genre = st.Genre
	if err := h.finishOnboarding(st, profile); err != nil {
		return err
	}
	return b.SendMessage(chatID, "skipped calibration. send me your lines and i'll keep up. /help for commands")
}

func (h *ClientHandlers) finishOnboarding(st users.ChatState, profile studio.Profile) error {
	id := SessionID(st.ChatID)
	if h.Store != nil {
		if err := h.Store.SaveProfile(context.Background(), id, st.TgName, profile); err != nil {
			logger.Error(fmt.Sprintf("failed to save profile for %s: %v", id, err))
		}
	}

	h.Chats.Update(st.ChatID, func(st *users.ChatState) { st.Stage = users.StageWriting })

	if sess, ok := h.Manager.Get(id); ok {
		sess.SetGenre(profile.Genre)
		sess.SetPersona(profile.ArtistMode)
		sess.SetAutoSuggest(profile.AutoSuggest)
		return nil
	}
	if _, err := h.Manager.Open(id, "", profile); err != nil {
		return fmt.Errorf("failed to open session %s: %w", id, err)
	}
	logger.Info(fmt.Sprintf("studio session %s opened (%s)", id, profile.Genre))
	return nil
}

// profile returns the stored profile of a chat, or the default one.
func (h *ClientHandlers) profile(chatID int64) studio.Profile {
	if h.Store == nil {
		return studio.DefaultProfile()
	}
	w, err := h.Store.GetProfile(context.Background(), SessionID(chatID))
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logger.Error(fmt.Sprintf("failed to load profile for %d: %v", chatID, err))
		}
		return studio.DefaultProfile()
	}
	return w.Profile
}

func (h *ClientHandlers) saveProfile(chatID int64, edit func(*studio.Profile)) {
	if h.Store == nil {
		return
	}
	p := h.profile(chatID)
	edit(&p)
	name := ""
	if st, ok := h.Chats.Get(chatID); ok {
		name = st.TgName
	}
	if err := h.Store.SaveProfile(context.Background(), SessionID(chatID), name, p); err != nil {
		logger.Error(fmt.Sprintf("failed to save profile for %d: %v", chatID, err))
	}
}

// session returns the open session of a chat, reopening it from the stored
// profile after a restart.
func (h *ClientHandlers) session(chatID int64) (*studio.Session, bool) {
	id := SessionID(chatID)
	if sess, ok := h.Manager.Get(id); ok {
		return sess, true
	}
	if h.Store == nil {
		return nil, false
	}
	w, err := h.Store.GetProfile(context.Background(), id)
	if err != nil {
		return nil, false
	}

	if _, ok := h.Chats.Get(chatID); !ok {
		h.Chats.Put(users.ChatState{ChatID: chatID, TgName: w.Name, Stage: users.StageWriting, Genre: w.Profile.Genre})
	}
	return h.Manager.GetOrOpen(id, w.Profile), true
}

func (h *ClientHandlers) requireSession(b *bot.Bot, chatID int64) (*studio.Session, bool) {
	sess, ok := h.session(chatID)
	if !ok {
		b.SendMessage(chatID, "you're not in the studio yet. send /start")
	}
	return sess, ok
}

func (h *ClientHandlers) textHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	sess, ok := h.requireSession(b, message.Chat.ID)
	if !ok {
		return nil
	}

	_, err := sess.AppendLine(strings.TrimRight(message.Text, "\n"))
	return err
}

func (h *ClientHandlers) rhymesHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	chatID := message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	if word := strings.TrimSpace(message.CommandArguments()); word != "" {
		r, found := lastOccurrence(sess.Snapshot().Lyrics, word)
		if !found {
			return b.SendMessage(chatID, fmt.Sprintf("%q is not in your lyrics", word))
		}
		if err := sess.Select(studio.Selection{Start: r.Start, End: r.End}); err != nil {
			return err
		}
	}

	snap := sess.Snapshot()
	word := snap.FocusWord()
	if word == "" {
		return b.SendMessage(chatID, "no word in focus. try /rhymes <word>")
	}

	h.Chats.Update(chatID, func(st *users.ChatState) { st.WantRhymes = true })
	if !sess.RequestRhymes() {
		h.Chats.Update(chatID, func(st *users.ChatState) { st.WantRhymes = false })
		return b.SendMessage(chatID, fmt.Sprintf("%q is too short to rhyme", word))
	}
	return nil
}

// lastOccurrence finds the last whole-word match of word in text, in
// character offsets.
func lastOccurrence(text, word string) (studio.Range, bool) {
	runes := []rune(text)
	target := []rune(word)
	for start := len(runes) - len(target); start >= 0; start-- {
		end := start + len(target)
		if !strings.EqualFold(string(runes[start:end]), word) {
			continue
		}
		f, ok := studio.DetectFocus(text, studio.Selection{Start: start, End: end})
		if !ok {
			continue
		}
		// must not be part of a longer word
		if around, ok := studio.DetectFocus(text, studio.Cursor(start)); ok && around.Range != f.Range {
			continue
		}
		return f.Range, true
	}
	return studio.Range{}, false
}

func (h *ClientHandlers) suggestHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	h.Chats.Update(chatID, func(st *users.ChatState) { st.WantSuggestions = true })
	if !sess.RequestSuggestions() {
		h.Chats.Update(chatID, func(st *users.ChatState) { st.WantSuggestions = false })
		return b.SendMessage(chatID, "write a bit more first, i need at least a line to work with")
	}
	return b.SendMessage(chatID, "cooking up some lines...")
}

func (h *ClientHandlers) lyricsHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	lyrics := sess.Snapshot().Lyrics
	if strings.TrimSpace(lyrics) == "" {
		return b.SendMessage(chatID, "the page is empty. send me a line")
	}
	return b.SendMessage(chatID, truncate(lyrics))
}

func (h *ClientHandlers) autoHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	on := !sess.Snapshot().AutoSuggest
	sess.SetAutoSuggest(on)
	h.saveProfile(chatID, func(p *studio.Profile) { p.AutoSuggest = on })

	if on {
		return b.SendMessage(chatID, "auto-suggest on. i'll drop lines when you pause")
	}
	return b.SendMessage(chatID, "auto-suggest off. use /suggest when you want lines")
}

func (h *ClientHandlers) personaHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	on := !sess.Snapshot().Context.Persona
	sess.SetPersona(on)
	h.saveProfile(chatID, func(p *studio.Profile) { p.ArtistMode = on })

	if on {
		return b.SendMessage(chatID, "artist mode on. suggestions will stick to your persona")
	}
	return b.SendMessage(chatID, "artist mode off")
}

func (h *ClientHandlers) beatHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	chatID := message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	if strings.EqualFold(strings.TrimSpace(message.CommandArguments()), "off") {
		sess.SetInstrumental(nil)
		return b.SendMessage(chatID, "beat removed")
	}

	h.Chats.Update(chatID, func(st *users.ChatState) { st.Stage = users.StageAwaitingBeat })
	return b.SendMessage(chatID, "send the instrumental as an audio file")
}

func (h *ClientHandlers) audioHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	chatID := message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	fileID, mime := message.Audio.FileID, message.Audio.MimeType
	if mime == "" {
		mime = "audio/mpeg"
	}

	data, err := b.DownloadFile(context.Background(), fileID)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to download beat for %d: %v", chatID, err))
		return b.SendMessage(chatID, "couldn't download that file, try again")
	}

	b.SendMessage(chatID, "listening...")
	meta, err := sess.AnalyzeInstrumental(context.Background(), generation.Audio{Data: data, MIMEType: mime})
	h.Chats.Update(chatID, func(st *users.ChatState) { st.Stage = users.StageWriting })
	if err != nil {
		return b.SendMessage(chatID, "couldn't analyze that beat")
	}
	return b.SendMessage(chatID, "beat locked in: "+describeBeat(meta))
}

func describeBeat(m *generation.InstrumentalMetadata) string {
	var parts []string
	if m.BPM != nil {
		parts = append(parts, fmt.Sprintf("%d bpm", *m.BPM))
	}
	if m.Key != nil {
		parts = append(parts, *m.Key)
	}
	if m.EnergyLevel != nil {
		parts = append(parts, fmt.Sprintf("energy %d/10", *m.EnergyLevel))
	}
	if len(m.VibeTags) > 0 {
		parts = append(parts, strings.Join(m.VibeTags, ", "))
	}
	if len(parts) == 0 {
		return "no details detected"
	}
	return strings.Join(parts, " · ")
}

func (h *ClientHandlers) statsHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	if h.Store == nil {
		return b.SendMessage(chatID, "analytics are not available")
	}

	d, err := stats.Build(context.Background(), h.Store, SessionID(chatID), h.now())
	if err != nil {
		logger.Error(fmt.Sprintf("failed to build dashboard for %d: %v", chatID, err))
		return b.SendMessage(chatID, "couldn't load your stats")
	}
	return b.SendMessage(chatID, d.Text())
}

func (h *ClientHandlers) importHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	chatID := message.Chat.ID
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}
	if h.Importer == nil {
		return b.SendMessage(chatID, "import is not available")
	}

	url := strings.TrimSpace(message.CommandArguments())
	if url == "" {
		return b.SendMessage(chatID, "usage: /import <link to a lyrics page>")
	}

	res, err := h.Importer.Import(context.Background(), url)
	if err != nil {
		return b.SendMessage(chatID, "couldn't find lyrics on that page")
	}
	if err := sess.Edit(res.Text, studio.Cursor(len([]rune(res.Text)))); err != nil {
		return err
	}
	return b.SendMessage(chatID, fmt.Sprintf("imported %q from %s. /lyrics to see it", res.Title, res.Source))
}

func (h *ClientHandlers) clearHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.Message.Chat.ID
	if _, ok := h.requireSession(b, chatID); !ok {
		return nil
	}

	h.Chats.Update(chatID, func(st *users.ChatState) { st.ClearInProgress = true })
	return b.SendMessageWithButtons(chatID, "the whole page will be wiped. sure?",
		tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("wipe it", "clear:confirm"),
				tgbotapi.NewInlineKeyboardButtonData("keep it", "clear:abort"),
			),
		),
	)
}

func (h *ClientHandlers) clearCallbackHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.CallbackQuery.Message.Chat.ID

	var inProgress bool
	h.Chats.Update(chatID, func(st *users.ChatState) {
		inProgress = st.ClearInProgress
		st.ClearInProgress = false
	})
	if !inProgress {
		return b.SendMessage(chatID, "that button doesn't work anymore")
	}

	if bot.CallbackArg(update.CallbackQuery.Data) != "confirm" {
		return b.SendMessage(chatID, "ok, kept it")
	}
	sess, ok := h.session(chatID)
	if !ok {
		return nil
	}
	if err := sess.Edit("", studio.Cursor(0)); err != nil {
		return err
	}
	return b.SendMessage(chatID, "page wiped")
}

func (h *ClientHandlers) rhymeCallbackHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.CallbackQuery.Message.Chat.ID
	st, _ := h.Chats.Get(chatID)

	candidate, ok := pick(st.ShownRhymes, bot.CallbackArg(update.CallbackQuery.Data))
	if !ok {
		return b.SendMessage(chatID, "that button doesn't work anymore")
	}
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	if _, applied := sess.ApplyRhyme(candidate); !applied {
		return b.SendMessage(chatID, "no word in focus to replace")
	}
	return b.SendMessage(chatID, "✍️ "+currentLine(sess.Snapshot()))
}

func (h *ClientHandlers) insertCallbackHandler(b *bot.Bot, update tgbotapi.Update) error {
	chatID := update.CallbackQuery.Message.Chat.ID
	st, _ := h.Chats.Get(chatID)

	line, ok := pick(st.ShownSuggestions, bot.CallbackArg(update.CallbackQuery.Data))
	if !ok {
		return b.SendMessage(chatID, "that button doesn't work anymore")
	}
	sess, ok := h.requireSession(b, chatID)
	if !ok {
		return nil
	}

	if _, err := sess.InsertSuggestion(line); err != nil {
		return err
	}
	return b.SendMessage(chatID, "➕ "+line)
}

func pick(items []string, arg string) (string, bool) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(items) {
		return "", false
	}
	return items[i], true
}

// currentLine is the line holding the focus, or the last line.
func currentLine(st studio.State) string {
	runes := []rune(st.Lyrics)
	at := len(runes)
	if st.Focus != nil && st.Focus.Range.End <= len(runes) {
		at = st.Focus.Range.End
	}
	start, end := at, at
	for start > 0 && runes[start-1] != '\n' {
		start--
	}
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	return string(runes[start:end])
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxMessageLen {
		return s
	}
	return "…" + string(runes[len(runes)-maxMessageLen:])
}

// OnEvent pushes fetch results to the chat that asked for them.
func (h *ClientHandlers) OnEvent(ev studio.Event) {
	chatID, ok := chatIDOf(ev.SessionID)
	if !ok {
		return
	}

	var err error
	switch ev.Kind {
	case studio.EventRhymesUpdated:
		err = h.pushRhymes(chatID, ev)
	case studio.EventSuggestionsUpdated:
		err = h.pushSuggestions(chatID, ev)
	}
	if err != nil {
		logger.Error(fmt.Sprintf("failed to push %s to %d: %v", ev.Kind, chatID, err))
	}
}

func (h *ClientHandlers) pushRhymes(chatID int64, ev studio.Event) error {
	var want bool
	h.Chats.Update(chatID, func(st *users.ChatState) {
		want = st.WantRhymes
		if want {
			st.WantRhymes = false
			st.ShownRhymes = limit(ev.State.Rhymes)
		}
	})
	if !want {
		return nil
	}

	word := ev.State.FocusWord()
	if ev.Failed || len(ev.State.Rhymes) == 0 {
		return h.bot.SendMessage(chatID, fmt.Sprintf("no rhymes for %q right now", word))
	}

	shown := limit(ev.State.Rhymes)
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(shown); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData(shown[i], fmt.Sprintf("rhyme:%d", i))}
		if i+1 < len(shown) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(shown[i+1], fmt.Sprintf("rhyme:%d", i+1)))
		}
		rows = append(rows, row)
	}
	return h.bot.SendMessageWithButtons(chatID,
		fmt.Sprintf("rhymes for %q: %s\n\ntap one to swap it in", word, strings.Join(ev.State.Rhymes, ", ")),
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *ClientHandlers) pushSuggestions(chatID int64, ev studio.Event) error {
	var want bool
	h.Chats.Update(chatID, func(st *users.ChatState) {
		want = st.WantSuggestions || (ev.State.AutoSuggest && !ev.Failed && len(ev.State.Suggestions) > 0)
		st.WantSuggestions = false
	})
	if !want {
		return nil
	}
	if ev.Failed || len(ev.State.Suggestions) == 0 {
		return h.bot.SendMessage(chatID, "the muse is quiet right now, try /suggest again")
	}

	lines := make([]string, 0, len(ev.State.Suggestions))
	var text strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, s := range ev.State.Suggestions {
		if i == maxButtons {
			break
		}
		lines = append(lines, s.Text)
		fmt.Fprintf(&text, "%d. %s\n   %s · %d%% match · %s\n", i+1, s.Text, s.Category, s.MatchScore, strings.Repeat("★", s.Rating))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("add line %d", i+1), fmt.Sprintf("insert:%d", i)),
		))
	}
	h.Chats.Update(chatID, func(st *users.ChatState) { st.ShownSuggestions = lines })

	return h.bot.SendMessageWithButtons(chatID, text.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func limit(items []string) []string {
	if len(items) > maxButtons {
		items = items[:maxButtons]
	}
	return append([]string(nil), items...)
}

// messageHandler routes plain messages by the chat's stage.
func (h *ClientHandlers) messageHandler(b *bot.Bot, update tgbotapi.Update) error {
	message := update.Message
	if message == nil {
		return nil
	}
	if message.IsCommand() {
		return b.SendMessage(message.Chat.ID, "unknown command. /help")
	}

	st, ok := h.Chats.Get(message.Chat.ID)
	if !ok {
		if _, reopened := h.session(message.Chat.ID); reopened {
			st, _ = h.Chats.Get(message.Chat.ID)
		} else {
			return b.SendMessage(message.Chat.ID, "send /start to open the studio")
		}
	}

	switch {
	case st.Stage == users.StageChoosingGenre:
		return b.SendMessage(message.Chat.ID, "pick a genre above first")
	case message.Voice != nil && st.Stage == users.StageCalibrating:
		return h.voiceHandler(b, update, st)
	case st.Stage == users.StageCalibrating:
		return b.SendMessage(message.Chat.ID, "send a voice note to calibrate, or /skip")
	case message.Audio != nil:
		return h.audioHandler(b, update)
	case message.Voice != nil:
		return b.SendMessage(message.Chat.ID, "voice notes are for calibration. /start to recalibrate, /beat to upload an instrumental")
	case message.Text != "":
		return h.textHandler(b, update)
	}
	return nil
}

func SetupHandlers(b *bot.Bot, deps Deps) bot.Handlers {
	handlers := NewClientHandlers(b, deps)
	deps.Manager.OnEvent(handlers.OnEvent)

	commandHandlers := common.GetCommandHandlers()
	commandHandlers["start"] = handlers.startHandler
	commandHandlers["skip"] = handlers.skipHandler
	commandHandlers["rhymes"] = handlers.rhymesHandler
	commandHandlers["suggest"] = handlers.suggestHandler
	commandHandlers["lyrics"] = handlers.lyricsHandler
	commandHandlers["auto"] = handlers.autoHandler
	commandHandlers["persona"] = handlers.personaHandler
	commandHandlers["beat"] = handlers.beatHandler
	commandHandlers["stats"] = handlers.statsHandler
	commandHandlers["import"] = handlers.importHandler
	commandHandlers["clear"] = handlers.clearHandler

	callbackHandlers := common.GetCallbackHandlers()
	callbackHandlers["genre"] = handlers.genreHandler
	callbackHandlers["rhyme"] = handlers.rhymeCallbackHandler
	callbackHandlers["insert"] = handlers.insertCallbackHandler
	callbackHandlers["clear"] = handlers.clearCallbackHandler

	return bot.Handlers{
		Commands:  commandHandlers,
		Messages:  []bot.HandlerFunc{handlers.messageHandler},
		Callbacks: callbackHandlers,
	}
}
