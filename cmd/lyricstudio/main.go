package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/sukalov/lyricstudio/internal/bot"
	"github.com/sukalov/lyricstudio/internal/bot/admin"
	"github.com/sukalov/lyricstudio/internal/bot/client"
	"github.com/sukalov/lyricstudio/internal/config"
	"github.com/sukalov/lyricstudio/internal/db"
	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/logger"
	"github.com/sukalov/lyricstudio/internal/lyrics"
	"github.com/sukalov/lyricstudio/internal/redis"
	"github.com/sukalov/lyricstudio/internal/server"
	"github.com/sukalov/lyricstudio/internal/stats"
	"github.com/sukalov/lyricstudio/internal/studio"
	"github.com/sukalov/lyricstudio/internal/users"
)

var CLI struct {
	Debug bool `help:"Log debug messages"`

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP and WebSocket API"`
	Bot     BotCmd     `cmd:"" help:"Run the Telegram studio bot"`
	Analyze AnalyzeCmd `cmd:"" help:"Analyze an instrumental or a cadence take"`
	Import  ImportCmd  `cmd:"" help:"Extract lyrics from a web page"`
}

// app is everything the long-running commands share.
type app struct {
	cfg      *config.Config
	gen      generation.Service
	store    *db.Store
	manager  *studio.Manager
	recorder *stats.Recorder
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if a.gen, err = a.generator(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if a.store, err = db.Open(ctx, cfg.StatsDBURL, cfg.StatsDBAuthToken); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { a.store.Close() })

	a.manager = studio.NewManager(a.gen, cfg.Studio)

	a.recorder = stats.NewRecorder(a.store, cfg.StatsBuffer)
	a.manager.OnEvent(a.recorder.Listen)

	return a, nil
}

// generator builds the configured engine, cached in Redis when REDIS_URL is
// set.
func (a *app) generator(ctx context.Context) (generation.Service, error) {
	var engine generation.Engine
	switch a.cfg.Provider {
	case config.ProviderOllama:
		ollama := generation.NewOllamaEngine(a.cfg.OllamaURL, a.cfg.OllamaModel)
		if !ollama.Ping(ctx) {
			logger.Error(fmt.Sprintf("ollama is not answering at %s, requests will fail until it does", a.cfg.OllamaURL))
		}
		engine = ollama
	default:
		gemini, err := generation.NewGeminiEngine(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		engine = gemini
	}
	logger.Info("generation engine: " + engine.Name())

	var gen generation.Service = generation.NewClient(engine)
	if a.cfg.RedisURL == "" {
		return gen, nil
	}

	cache, err := redis.NewCache(ctx, a.cfg.RedisURL, a.cfg.RedisPassword)
	if err != nil {
		logger.Error(fmt.Sprintf("redis unavailable, running without cache: %v", err))
		return gen, nil
	}
	a.closers = append(a.closers, func() { cache.Close() })
	return generation.NewCached(gen, cache, a.cfg.CacheTTL), nil
}

// startRecorder runs the stats recorder until Close, which waits for it to
// drain before the store is closed.
func (a *app) startRecorder(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	go a.recorder.Run(ctx)
	a.closers = append(a.closers, func() {
		cancel()
		<-a.recorder.Done()
	})
}

// Close shuts sessions down first so their last events reach the recorder,
// then runs the closers in reverse order.
func (a *app) Close() {
	if a.manager != nil {
		a.manager.CloseAll()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type ServeCmd struct {
	Addr    string `help:"Listen address (defaults to HTTP_ADDR)"`
	WithBot bool   `name:"with-bot" help:"Also run the Telegram bot"`
}

func (c *ServeCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.startRecorder(ctx)

	if c.WithBot {
		b, err := startBot(ctx, a)
		if err != nil {
			return err
		}
		defer b.Stop()
	}

	addr := c.Addr
	if addr == "" {
		addr = a.cfg.HTTPAddr
	}

	srv := server.New(server.Deps{
		Manager:  a.manager,
		Cadence:  a.gen,
		Store:    a.store,
		Importer: lyrics.NewImporter(),
		Binder:   a.recorder,
	})
	return srv.ListenAndServe(ctx, addr)
}

type BotCmd struct{}

func (c *BotCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.startRecorder(ctx)

	b, err := startBot(ctx, a)
	if err != nil {
		return err
	}
	defer b.Stop()

	<-ctx.Done()
	logger.Info("shutting down bot")
	return nil
}

func startBot(ctx context.Context, a *app) (*bot.Bot, error) {
	if a.cfg.BotToken == "" {
		return nil, fmt.Errorf("missing required environment variable: BOT_TOKEN")
	}

	b, err := bot.New("studio", a.cfg.BotToken)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(b); err != nil {
		logger.Info(fmt.Sprintf("log channel disabled: %v", err))
	}

	chats := users.NewManager()
	handlers := client.SetupHandlers(b, client.Deps{
		Manager:  a.manager,
		Cadence:  a.gen,
		Store:    a.store,
		Importer: lyrics.NewImporter(),
		Chats:    chats,
	})
	admin.SetupHandlers(&handlers, a.manager, chats, a.cfg.AdminUsernames)

	go b.Start(ctx, handlers)
	return b, nil
}

type AnalyzeCmd struct {
	Path    string `arg:"" help:"Audio file" type:"existingfile"`
	Cadence bool   `help:"Score the file as a vocal take instead of an instrumental"`
	Refresh bool   `help:"Drop a cached analysis of the file first"`
	MIME    string `name:"mime" help:"MIME type (detected when empty)"`
}

func (c *AnalyzeCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a := &app{cfg: cfg}
	defer a.Close()

	gen, err := a.generator(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Path, err)
	}
	audio := generation.Audio{Data: data, MIMEType: audioMIME(c.MIME, c.Path, data)}

	if cached, ok := gen.(*generation.Cached); ok && c.Refresh && !c.Cadence {
		if err := cached.ForgetInstrumental(ctx, audio); err != nil {
			logger.Error(fmt.Sprintf("failed to drop cached analysis: %v", err))
		}
	}

	var result any
	if c.Cadence {
		result, err = gen.AnalyzeCadence(ctx, audio)
	} else {
		result, err = gen.AnalyzeInstrumental(ctx, audio)
	}
	if err != nil {
		return logger.LogWithErr(fmt.Sprintf("analysis failed\nFile: %s\nMIME: %s", c.Path, audio.MIMEType), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func audioMIME(explicit, path string, data []byte) string {
	if explicit != "" {
		return explicit
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

type ImportCmd struct {
	URL    string `arg:"" help:"Lyrics page URL"`
	Output string `short:"o" help:"Write the lyrics to a file instead of stdout" type:"path"`
}

func (c *ImportCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	res, err := lyrics.NewImporter().Import(ctx, c.URL)
	if err != nil {
		return logger.LogWithErr(fmt.Sprintf("failed to import lyrics\nURL: %s", c.URL), err)
	}

	if c.Output == "" {
		fmt.Printf("%s (%s)\n\n%s\n", res.Title, res.Source, res.Text)
		return nil
	}
	if err := os.WriteFile(c.Output, []byte(res.Text), 0o644); err != nil {
		return fmt.Errorf("failed to save %s: %w", c.Output, err)
	}
	logger.Success(fmt.Sprintf("lyrics imported\nURL: %s\nOutput: %s\nLength: %d chars", c.URL, c.Output, len(res.Text)))
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("lyricstudio"),
		kong.Description("Songwriting studio: focus-word rhymes and line suggestions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if CLI.Debug {
		logger.SetLevel(slog.LevelDebug)
	} else {
		logger.SetLevel(slog.LevelInfo)
	}
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
