package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlexSolari/botFramework-sub000/internal/api"
	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/biz/usecase"
	"github.com/AlexSolari/botFramework-sub000/internal/conf"
	"github.com/AlexSolari/botFramework-sub000/internal/data"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
	"github.com/AlexSolari/botFramework-sub000/internal/infra/lark"
	"github.com/AlexSolari/botFramework-sub000/internal/logging"
	"github.com/AlexSolari/botFramework-sub000/internal/service"
)

func main() {
	cfg := conf.LoadFromEnv()
	logger := logging.Setup(cfg.Verbosity)

	if cfg.Lark.AppID == "" || cfg.Lark.AppSecret == "" {
		log.Fatal("LARK_APP_ID and LARK_APP_SECRET are required")
	}

	overrides, err := conf.LoadActionOverrides(os.Getenv("ACTIONS_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load action overrides: %v", err)
	}

	stateRepo, err := data.NewStateRepo(cfg.State.DBPath)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer stateRepo.Close()

	bus := eventbus.NewBus(logger)
	bus.AttachLogger(logging.GetLogger("events"))

	timers := service.NewTimerService(bus, logger)
	store := usecase.NewStateStore(stateRepo, bus, logger)
	cache := usecase.NewSharedCache(bus, logger, timers.OnceFunc)
	engine := usecase.NewTriggerEngine(store, logger)
	queue := service.NewDeliveryQueue(cfg.Delivery.MinSpacing, logger)

	platform := lark.NewClient(cfg.Lark.AppID, cfg.Lark.AppSecret, logger)
	processor := service.NewProcessor(store, cache, engine, platform, queue, timers, bus, logger)

	registerActions(processor, cfg, overrides)

	if cfg.DebugAddr != "" {
		debugSrv := api.NewServer(processor, store, queue, bus, cfg.DebugAddr, logger)
		go func() {
			if err := debugSrv.Start(); err != nil {
				logger.Error().Err(err).Msg("debug api stopped")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
		processor.Stop()
		timers.Stop()
		store.Close()
		os.Exit(0)
	}()

	fmt.Println("Starting example bot...")
	if err := processor.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Platform connection error: %v", err)
	}
}

func registerActions(processor *service.Processor, cfg *conf.Config, overrides *conf.ActionsConfig) {
	ping := &domain.CommandAction{
		ActionBase: domain.ActionBase{
			Key:      "commands/ping",
			Name:     "ping",
			Triggers: []domain.Trigger{domain.TextTrigger("!ping")},
		},
		Cooldown: 10 * time.Second,
		Handler: func(ctx context.Context, exec *domain.ExecutionContext) error {
			exec.Reply("pong")
			return nil
		},
	}
	applyOverride(ping, overrides)
	processor.RegisterCommand(ping)

	orders := &domain.CommandAction{
		ActionBase: domain.ActionBase{
			Key:      "commands/order",
			Name:     "order",
			Triggers: []domain.Trigger{domain.NewPatternTrigger(`(?i)order (\d+)`, true)},
		},
		Handler: func(ctx context.Context, exec *domain.ExecutionContext) error {
			var ids []string
			for _, m := range exec.Matches {
				ids = append(ids, m[1])
			}
			exec.Reply(fmt.Sprintf("registered orders: %s", strings.Join(ids, ", ")))
			return nil
		},
	}
	applyOverride(orders, overrides)
	processor.RegisterCommand(orders)

	pinme := &domain.CommandAction{
		ActionBase: domain.ActionBase{
			Key:      "commands/pinme",
			Name:     "pinme",
			Triggers: []domain.Trigger{domain.TextTrigger("!pinme")},
		},
		Handler: func(ctx context.Context, exec *domain.ExecutionContext) error {
			exec.Pin(exec.Message.MessageID)
			exec.React(exec.Message.MessageID, "THUMBSUP")
			return nil
		},
	}
	applyOverride(pinme, overrides)
	processor.RegisterCommand(pinme)

	confirm := &domain.CommandAction{
		ActionBase: domain.ActionBase{
			Key:      "commands/confirm",
			Name:     "confirm",
			Triggers: []domain.Trigger{domain.TextTrigger("!confirm")},
		},
		Handler: func(ctx context.Context, exec *domain.ExecutionContext) error {
			exec.ReplyToMessage(exec.Message.MessageID, "Reply to your message with yes or no within a minute.")
			captureCtx, captureCancel := context.WithTimeout(context.Background(), time.Minute)

			var stop func()
			stop = processor.RegisterCapture(captureCtx, &domain.ReplyCaptureAction{
				ActionBase: domain.ActionBase{
					Key:  "captures/confirm/" + exec.Message.MessageID,
					Name: "confirm-capture",
					Triggers: []domain.Trigger{
						domain.TextTrigger("yes"),
						domain.TextTrigger("no"),
					},
				},
				ParentMessageID: exec.Message.MessageID,
				Handler: func(ctx context.Context, captureExec *domain.ExecutionContext) error {
					captureExec.Reply(fmt.Sprintf("confirmed: %s", captureExec.Message.Text))
					stop()
					captureCancel()
					return nil
				},
			})
			return nil
		},
	}
	applyOverride(confirm, overrides)
	processor.RegisterCommand(confirm)

	if cfg.AI.APIKey != "" {
		ai := data.NewAIClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
		ask := &domain.CommandAction{
			ActionBase: domain.ActionBase{
				Key:      "commands/ask",
				Name:     "ask",
				Triggers: []domain.Trigger{domain.NewPatternTrigger(`^!ask (.+)$`, false)},
			},
			Cooldown:         5 * time.Second,
			ConcurrencyLimit: 1,
			Handler: func(ctx context.Context, exec *domain.ExecutionContext) error {
				question := exec.Matches[0][1]
				answer, err := ai.Complete(ctx, "You are a concise chat assistant.", question)
				if err != nil {
					return err
				}
				exec.ReplyToMessage(exec.Message.MessageID, answer)
				return nil
			},
		}
		applyOverride(ask, overrides)
		processor.RegisterCommand(ask)
	}

	digest := &domain.ScheduledAction{
		ActionBase: domain.ActionBase{
			Key:  "scheduled/digest",
			Name: "digest",
		},
		Interval: time.Hour,
		Handler: func(ctx context.Context, exec *domain.ExecutionContext) error {
			count := len(exec.Chat.Recent())
			summary, err := exec.Cached(ctx, "digest-header", 30*time.Minute, func(ctx context.Context) (any, error) {
				return fmt.Sprintf("Hourly digest (%s)", time.Now().Format("15:04")), nil
			})
			if err != nil {
				return err
			}
			if count == 0 {
				return nil
			}
			exec.Reply(fmt.Sprintf("%s: %d messages seen recently", summary, count))
			return nil
		},
	}
	processor.RegisterScheduled(digest)
}

func applyOverride(action *domain.CommandAction, overrides *conf.ActionsConfig) {
	o, ok := overrides.For(action.Key)
	if !ok {
		return
	}
	if o.CooldownSeconds > 0 {
		action.Cooldown = time.Duration(o.CooldownSeconds) * time.Second
	}
	if len(o.Whitelist) > 0 {
		action.Whitelist = o.Whitelist
	}
	if len(o.Blacklist) > 0 {
		action.Blacklist = o.Blacklist
	}
	if len(o.UserWhitelist) > 0 {
		action.UserWhitelist = o.UserWhitelist
	}
	if o.ConcurrencyLimit > 0 {
		action.ConcurrencyLimit = o.ConcurrencyLimit
	}
	if o.Active != nil {
		active := *o.Active
		action.Active = func() bool { return active }
	}
}
