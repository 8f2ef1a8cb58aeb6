package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"auto_thread_publisher/bot"
	"auto_thread_publisher/config"
	"auto_thread_publisher/generator"
	"auto_thread_publisher/logging"
	"auto_thread_publisher/publisher"
	"auto_thread_publisher/review"
	"auto_thread_publisher/server"
)

const cliOwner = "cli"

var verbose bool

func main() {
	envFile := flag.String("env", ".env", "path to .env file (ignored when missing)")
	cli := flag.Bool("cli", false, "run an interactive review session in the terminal instead of the bot")
	mockLLM := flag.Bool("mock-llm", false, "use the offline mock model instead of OpenAI (OPENAI_API_KEY not required)")
	topic := flag.String("topic", "", "main topic (--cli)")
	threadContext := flag.String("context", "", "thread context (--cli)")
	keywords := flag.String("keywords", "", "comma separated keywords (--cli)")
	tags := flag.String("tag", "", "comma separated accounts to tag (--cli)")
	length := flag.Int("length", 5, "number of posts, 1-10 (--cli)")
	tone := flag.String("tone", "normal", "normal, casual or promotional (--cli)")
	link := flag.String("link", "", "optional link to include (--cli)")
	deadline := flag.String("deadline", "", "optional ISO-8601 schedule date for the thread (--cli)")
	flag.BoolVar(&verbose, "v", false, "enable debug logs")
	flag.Parse()

	cfg, err := config.LoadWith(*envFile, config.LoadOptions{Terminal: *cli, OfflineModel: *mockLLM})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger := logging.New(cfg.ServiceName, cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := buildManager(cfg, *mockLLM, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	if *cli {
		req := generator.Request{
			Topic:    strings.TrimSpace(*topic),
			Context:  strings.TrimSpace(*threadContext),
			Keywords: generator.SplitList(*keywords),
			Mentions: generator.SplitList(*tags),
			Tone:     generator.ParseTone(*tone),
			Length:   *length,
			Link:     strings.TrimSpace(*link),
			Deadline: strings.TrimSpace(*deadline),
		}
		if err := runCLI(ctx, manager, req, cfg.GenerationTimeout, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, review.UserMessage(err))
			logger.Debug().Err(err).Msg("cli session ended with error")
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, manager, logger); err != nil {
		logger.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}

func buildManager(cfg *config.Config, mock bool, logger zerolog.Logger) (*review.Manager, error) {
	tones, err := config.LoadTones(cfg.TonesFile)
	if err != nil {
		return nil, err
	}
	llm, err := buildLLM(cfg, mock)
	if err != nil {
		return nil, err
	}
	agent, err := generator.NewAgent(llm, tones)
	if err != nil {
		return nil, err
	}
	pub, err := publisher.New(publisher.Config{
		APIKey:    cfg.TypefullyAPIKey,
		BaseURL:   cfg.TypefullyBaseURL,
		ShareBase: cfg.TypefullyShareBase,
		Schedule:  cfg.TypefullySchedule,
		Timeout:   cfg.GenerationTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return review.NewManager(agent, pub, review.Options{
		TTL:    cfg.SessionTTL,
		Logger: logger,
	})
}

func buildLLM(cfg *config.Config, mock bool) (generator.LLMClient, error) {
	if mock {
		return generator.MockLLM{}, nil
	}
	// OPENAI_BASE_URL 可指向任意 OpenAI 兼容网关（例如 DeepSeek）。
	return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
		Provider:   "openai",
		Model:      cfg.OpenAIModel,
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		MaxRetries: cfg.OpenAIMaxRetries,
		Timeout:    cfg.GenerationTimeout,
	})
}

// serve runs the Telegram bot, the HTTP server and the session janitor until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, manager *review.Manager, logger zerolog.Logger) error {
	if len(cfg.AllowedChatIDs) == 0 {
		logger.Warn().Msg("ALLOWED_CHAT_IDS is empty; every chat may use the bot")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv, err := server.New(manager, server.Options{
		APIEnabled: cfg.APIEnabled,
		Timeout:    cfg.GenerationTimeout,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	api.Debug = verbose
	b, err := bot.New(api, manager, bot.Options{
		Allowed: cfg.ChatAllowed,
		Timeout: cfg.GenerationTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	go manager.Run(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Bool("api", cfg.APIEnabled).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		logger.Info().Str("bot", api.Self.UserName).Msg("telegram bot started")
		b.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error().Err(err).Msg("http server failed")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("http shutdown")
	}
	<-botDone
	logger.Info().Msg("stopped")
	return err
}

// runCLI drives one session from a terminal: "f <feedback>" revises, "p" publishes, "q" quits.
func runCLI(ctx context.Context, manager *review.Manager, req generator.Request, timeout time.Duration, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Generating thread…")
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	sess, err := manager.Create(genCtx, req, cliOwner)
	cancel()
	if err != nil {
		return err
	}
	if err := printDraft(out, sess); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "[f <feedback> | p | q] > ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "":
			continue
		case "f", "feedback":
			opCtx, cancel := context.WithTimeout(ctx, timeout)
			_, err := sess.Revise(opCtx, cliOwner, arg)
			cancel()
			if err != nil {
				fmt.Fprintln(out, review.UserMessage(err))
				if errors.Is(err, review.ErrSessionExpired) {
					return err
				}
				continue
			}
			if err := printDraft(out, sess); err != nil {
				return err
			}
		case "p", "publish":
			opCtx, cancel := context.WithTimeout(ctx, timeout)
			url, err := sess.Finalize(opCtx, cliOwner)
			cancel()
			if err != nil {
				fmt.Fprintln(out, review.UserMessage(err))
				if errors.Is(err, review.ErrSessionExpired) {
					return err
				}
				continue
			}
			fmt.Fprintln(out, url)
			return nil
		case "q", "quit":
			return nil
		default:
			fmt.Fprintln(out, "unknown command; use f <feedback>, p or q")
		}
	}
}

func printDraft(out io.Writer, sess *review.Session) error {
	snap, err := sess.Snapshot(cliOwner)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n--- revision %d ---\n", snap.Draft.Revision)
	over := map[int]bool{}
	for _, i := range generator.OverLimit(snap.Draft.Posts, generator.PostCharLimit) {
		over[i] = true
	}
	for i, post := range snap.Draft.Posts {
		mark := ""
		if over[i] {
			mark = " (over limit)"
		}
		fmt.Fprintf(out, "%d. %s%s\n", i+1, post, mark)
	}
	fmt.Fprintln(out)
	return nil
}
