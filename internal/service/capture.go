package service

import (
	"context"
	"errors"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
	"github.com/AlexSolari/botFramework-sub000/internal/idgen"
)

// captureEntry is one outstanding reply capture registration. It is
// removed reactively when its owning cancellation signal fires, never by
// polling.
type captureEntry struct {
	action *domain.ReplyCaptureAction
	ctx    context.Context
	stop   func() bool
}

// RegisterCapture registers an ephemeral reply capture bound to ctx. The
// registration is removed when ctx is cancelled or when the returned stop
// function is called, whichever comes first.
func (p *Processor) RegisterCapture(ctx context.Context, action *domain.ReplyCaptureAction) (stop func()) {
	entry := &captureEntry{action: action, ctx: ctx}

	p.mu.Lock()
	p.captures = append(p.captures, entry)
	p.mu.Unlock()

	entry.stop = context.AfterFunc(ctx, func() {
		p.removeCapture(entry)
	})

	return func() {
		entry.stop()
		p.removeCapture(entry)
	}
}

func (p *Processor) removeCapture(entry *captureEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.captures {
		if e == entry {
			p.captures = append(p.captures[:i], p.captures[i+1:]...)
			return
		}
	}
}

func (p *Processor) captureSnapshot() []*captureEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*captureEntry(nil), p.captures...)
}

func (p *Processor) executeCapture(entry *captureEntry, msg *domain.IncomingMessage, chat *domain.ChatContext, res domain.TriggerCheckResult) {
	if entry.ctx.Err() != nil {
		return
	}
	action := entry.action
	correlation := idgen.New()
	p.bus.Publish(eventbus.Event{
		Kind:          eventbus.KindCaptureExecutionStarted,
		CorrelationID: correlation,
		Action:        action.Key,
		Tenant:        msg.ChatID,
	})

	state, err := p.store.GetState(entry.ctx, action, msg.ChatID)
	if err != nil {
		p.reportError(action.Key, msg.ChatID, err)
		return
	}

	exec := p.executionContext(correlation, res.Matches, msg, chat, state, nil)
	if err := invokeHandler(entry.ctx, action.Handler, exec); err != nil {
		if errors.Is(err, context.Canceled) {
			p.log.Debug().Str("action", action.Key).Msg("capture cancelled")
			return
		}
		p.reportError(action.Key, msg.ChatID, err)
		return
	}

	if !res.SkipCooldown {
		exec.State.LastExecutedAt = p.now()
	}
	if err := p.store.Save(entry.ctx, action, msg.ChatID, exec.State); err != nil {
		p.reportError(action.Key, msg.ChatID, err)
		return
	}

	p.enqueueResponses(exec.Responses())
	p.bus.Publish(eventbus.Event{
		Kind:          eventbus.KindCaptureExecutionFinished,
		CorrelationID: correlation,
		Action:        action.Key,
		Tenant:        msg.ChatID,
	})
}
