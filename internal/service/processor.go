package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/biz/repo"
	"github.com/AlexSolari/botFramework-sub000/internal/biz/usecase"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
	"github.com/AlexSolari/botFramework-sub000/internal/idgen"
)

// Processor matches inbound events against registered actions, runs
// eligible handlers and pushes produced responses into the delivery queue.
// Handler faults are isolated: a failing action never aborts its siblings'
// processing of the same event.
type Processor struct {
	store    *usecase.StateStore
	cache    *usecase.SharedCache
	engine   *usecase.TriggerEngine
	platform repo.PlatformRepo
	queue    *DeliveryQueue
	timers   *TimerService
	bus      *eventbus.Bus
	log      zerolog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	commands  []*domain.CommandAction
	scheduled []*domain.ScheduledAction
	inline    []*domain.InlineQueryAction
	captures  []*captureEntry
	chats     map[string]*domain.ChatContext
	inflight  map[string]*inflightQuery
	handles   []*TimerHandle
}

// NewProcessor wires a processor over its collaborators.
func NewProcessor(
	store *usecase.StateStore,
	cache *usecase.SharedCache,
	engine *usecase.TriggerEngine,
	platform repo.PlatformRepo,
	queue *DeliveryQueue,
	timers *TimerService,
	bus *eventbus.Bus,
	log zerolog.Logger,
) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		store:    store,
		cache:    cache,
		engine:   engine,
		platform: platform,
		queue:    queue,
		timers:   timers,
		bus:      bus,
		log:      log.With().Str("component", "processor").Logger(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		chats:    make(map[string]*domain.ChatContext),
		inflight: make(map[string]*inflightQuery),
	}
}

// RegisterCommand adds a command action. Registration happens at
// configuration time, before Start.
func (p *Processor) RegisterCommand(action *domain.CommandAction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, action)
}

// RegisterScheduled adds a scheduled action.
func (p *Processor) RegisterScheduled(action *domain.ScheduledAction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = append(p.scheduled, action)
}

// RegisterInline adds an inline query action.
func (p *Processor) RegisterInline(action *domain.InlineQueryAction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inline = append(p.inline, action)
}

// Start subscribes to the platform, starts the scheduled-action timers and
// blocks on the platform connection until ctx is done.
func (p *Processor) Start(ctx context.Context) error {
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.platform.OnMessage(p.HandleMessage)
	p.platform.OnInlineQuery(p.HandleInlineQuery)
	p.startScheduled()

	return p.platform.Start(p.ctx)
}

// Stop cancels in-flight work and disconnects from the platform.
func (p *Processor) Stop() {
	p.cancel()
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
	p.platform.Stop()
}

// HandleMessage dispatches one inbound message: outstanding reply captures
// first, then every registered command action, then a queue flush.
func (p *Processor) HandleMessage(msg *domain.IncomingMessage) {
	ctx := p.ctx
	chat := p.ChatContext(msg.ChatID)
	chat.Observe(msg)

	for _, entry := range p.captureSnapshot() {
		res := p.engine.CheckCapture(entry.action, msg)
		if res.ShouldExecute {
			p.executeCapture(entry, msg, chat, res)
		}
	}

	p.mu.Lock()
	commands := append([]*domain.CommandAction(nil), p.commands...)
	p.mu.Unlock()

	for _, action := range commands {
		res, err := p.engine.CheckCommand(ctx, action, msg, chat)
		if err != nil {
			p.reportError(action.Key, msg.ChatID, err)
			continue
		}
		if !res.ShouldExecute {
			if res.Reason == domain.ReasonOnCooldown {
				p.log.Debug().Str("action", action.Key).Str("chat", msg.ChatID).Msg("still on cooldown")
			}
			continue
		}
		p.executeCommand(ctx, action, msg, chat, res)
	}

	if err := p.queue.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.reportError("", msg.ChatID, fmt.Errorf("flush delivery queue: %w", err))
	}
}

func (p *Processor) executeCommand(ctx context.Context, action *domain.CommandAction, msg *domain.IncomingMessage, chat *domain.ChatContext, res domain.TriggerCheckResult) {
	correlation := idgen.New()
	p.bus.Publish(eventbus.Event{
		Kind:          eventbus.KindCommandExecutionStarted,
		CorrelationID: correlation,
		Action:        action.Key,
		Tenant:        msg.ChatID,
	})

	gate := action.Gate()
	if err := gate.Acquire(ctx, msg.ChatID); err != nil {
		return
	}
	defer gate.Release(msg.ChatID)

	state, err := p.store.GetState(ctx, action, msg.ChatID)
	if err != nil {
		p.reportError(action.Key, msg.ChatID, err)
		return
	}

	exec := p.executionContext(correlation, res.Matches, msg, chat, state, action.SetCooldownOverride)
	if err := invokeHandler(ctx, action.Handler, exec); err != nil {
		if errors.Is(err, context.Canceled) {
			p.log.Debug().Str("action", action.Key).Msg("execution cancelled")
			return
		}
		p.reportError(action.Key, msg.ChatID, err)
		return
	}

	if !res.SkipCooldown {
		exec.State.LastExecutedAt = p.now()
	}
	if err := p.store.Save(ctx, action, msg.ChatID, exec.State); err != nil {
		p.reportError(action.Key, msg.ChatID, err)
		return
	}

	p.enqueueResponses(exec.Responses())
	p.bus.Publish(eventbus.Event{
		Kind:          eventbus.KindCommandExecutionFinished,
		CorrelationID: correlation,
		Action:        action.Key,
		Tenant:        msg.ChatID,
		Detail:        map[string]any{"responses": len(exec.Responses())},
	})
}

// executionContext builds the surface handlers run against, wiring in
// cross-action state reads and the shared cache.
func (p *Processor) executionContext(correlation string, matches [][]string, msg *domain.IncomingMessage, chat *domain.ChatContext, state *domain.ActionState, setOverride func(time.Duration)) *domain.ExecutionContext {
	tenantID := ""
	if msg != nil {
		tenantID = msg.ChatID
	} else if chat != nil {
		tenantID = chat.ChatID
	}
	cached := func(ctx context.Context, key string, ttl time.Duration, builder func(context.Context) (any, error)) (any, error) {
		return p.cache.GetOrBuild(ctx, key, ttl, builder)
	}
	return domain.NewExecutionContext(
		tenantID, correlation, matches, msg, chat, state,
		p.store.LoadAll, cached, setOverride,
	)
}

// enqueueResponses assigns each response its logical delivery timestamp
// (creation time plus the handler's cumulative explicit delay) and pushes
// it into the delivery queue.
func (p *Processor) enqueueResponses(responses []domain.Response) {
	base := p.now().UnixMilli()
	for _, resp := range responses {
		r := resp
		p.queue.Enqueue(&QueueItem{
			Priority: base + r.Delay.Milliseconds(),
			Run: func(ctx context.Context) error {
				return p.deliver(ctx, r)
			},
		})
	}
}

func (p *Processor) deliver(ctx context.Context, r domain.Response) error {
	switch r.Kind {
	case domain.ResponseText:
		return p.platform.SendText(ctx, r.TenantID, r.Text, r.ReplyTo)
	case domain.ResponseMedia:
		return p.platform.SendMedia(ctx, r.TenantID, r.MediaKind, r.MediaPath)
	case domain.ResponseReaction:
		return p.platform.ToggleReaction(ctx, r.MessageID, r.Emoji)
	case domain.ResponsePin:
		return p.platform.Pin(ctx, r.MessageID)
	case domain.ResponseUnpin:
		return p.platform.Unpin(ctx, r.MessageID)
	default:
		return fmt.Errorf("unknown response kind %q", r.Kind)
	}
}

// ChatContext returns the bookkeeping context for a chat, creating it on
// first sight.
func (p *Processor) ChatContext(chatID string) *domain.ChatContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	chat, ok := p.chats[chatID]
	if !ok {
		chat = domain.NewChatContext(chatID, chatID)
		p.chats[chatID] = chat
	}
	return chat
}

func (p *Processor) reportError(actionKey, tenantID string, err error) {
	p.log.Error().Err(err).Str("action", actionKey).Str("tenant", tenantID).Msg("dispatch error")
	p.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindError,
		Action: actionKey,
		Tenant: tenantID,
		Detail: map[string]any{"error": err.Error()},
	})
}

// invokeHandler runs a handler, converting a panic into an error so a
// faulty action cannot take down the dispatcher.
func invokeHandler(ctx context.Context, h domain.CommandHandler, exec *domain.ExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, exec)
}
