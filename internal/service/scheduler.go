package service

import (
	"context"
	"errors"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
	"github.com/AlexSolari/botFramework-sub000/internal/idgen"
)

// startScheduled registers one repeating timer per scheduled action.
func (p *Processor) startScheduled() {
	p.mu.Lock()
	scheduled := append([]*domain.ScheduledAction(nil), p.scheduled...)
	p.mu.Unlock()

	for _, action := range scheduled {
		a := action
		handle := p.timers.Schedule(a.Key, a.Interval, func(ctx context.Context) {
			p.runScheduled(ctx, a)
		})
		p.mu.Lock()
		p.handles = append(p.handles, handle)
		p.mu.Unlock()
	}
}

// runScheduled executes one tick of a scheduled action across its chats.
// An action with a whitelist runs in exactly those chats; otherwise it runs
// in every chat the processor has seen.
func (p *Processor) runScheduled(ctx context.Context, action *domain.ScheduledAction) {
	chats := action.Whitelist
	if len(chats) == 0 {
		p.mu.Lock()
		for chatID := range p.chats {
			chats = append(chats, chatID)
		}
		p.mu.Unlock()
	}

	for _, chatID := range chats {
		chat := p.ChatContext(chatID)

		res, err := p.engine.CheckScheduled(ctx, action, chatID, chat)
		if err != nil {
			p.reportError(action.Key, chatID, err)
			continue
		}
		if !res.ShouldExecute {
			continue
		}
		p.executeScheduled(ctx, action, chatID, chat, res)
	}

	if err := p.queue.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.reportError(action.Key, "", err)
	}
}

func (p *Processor) executeScheduled(ctx context.Context, action *domain.ScheduledAction, chatID string, chat *domain.ChatContext, res domain.TriggerCheckResult) {
	correlation := idgen.New()
	p.bus.Publish(eventbus.Event{
		Kind:          eventbus.KindScheduledExecutionStarted,
		CorrelationID: correlation,
		Action:        action.Key,
		Tenant:        chatID,
	})

	state, err := p.store.GetState(ctx, action, chatID)
	if err != nil {
		p.reportError(action.Key, chatID, err)
		return
	}

	exec := p.executionContext(correlation, nil, nil, chat, state, nil)
	if err := invokeHandler(ctx, action.Handler, exec); err != nil {
		if errors.Is(err, context.Canceled) {
			p.log.Debug().Str("action", action.Key).Msg("scheduled run cancelled")
			return
		}
		p.reportError(action.Key, chatID, err)
		return
	}

	if !res.SkipCooldown {
		exec.State.LastExecutedAt = p.now()
	}
	if err := p.store.Save(ctx, action, chatID, exec.State); err != nil {
		p.reportError(action.Key, chatID, err)
		return
	}

	p.enqueueResponses(exec.Responses())
	p.bus.Publish(eventbus.Event{
		Kind:          eventbus.KindScheduledExecutionFinished,
		CorrelationID: correlation,
		Action:        action.Key,
		Tenant:        chatID,
		Detail:        map[string]any{"responses": len(exec.Responses())},
	})
}
