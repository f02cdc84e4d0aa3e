package service

import (
	"context"
	"errors"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
	"github.com/AlexSolari/botFramework-sub000/internal/idgen"
)

// inflightQuery tracks one tenant's running query handler so a superseding
// query can cancel it.
type inflightQuery struct {
	cancel context.CancelFunc
}

// HandleInlineQuery dispatches an inbound query event. A new query from a
// tenant supersedes that tenant's in-flight one: the superseded handler's
// context is cancelled and it is expected to observe the signal and wind
// down promptly. Cancellation is advisory, not preemptive.
func (p *Processor) HandleInlineQuery(query *domain.InlineQuery) {
	tenant := query.ChatID
	if tenant == "" {
		tenant = query.SenderID
	}

	ctx, cancel := context.WithCancel(p.ctx)
	unit := &inflightQuery{cancel: cancel}

	p.mu.Lock()
	if prev, ok := p.inflight[tenant]; ok {
		prev.cancel()
	}
	p.inflight[tenant] = unit
	actions := append([]*domain.InlineQueryAction(nil), p.inline...)
	p.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			p.mu.Lock()
			// A later query may have replaced this registration already.
			if p.inflight[tenant] == unit {
				delete(p.inflight, tenant)
			}
			p.mu.Unlock()
		}()
		p.processInlineQuery(ctx, tenant, query, actions)
	}()
}

func (p *Processor) processInlineQuery(ctx context.Context, tenant string, query *domain.InlineQuery, actions []*domain.InlineQueryAction) {
	for _, action := range actions {
		res := p.engine.CheckInline(action, query)
		if !res.ShouldExecute {
			continue
		}

		correlation := idgen.New()
		p.bus.Publish(eventbus.Event{
			Kind:          eventbus.KindInlineExecutionStarted,
			CorrelationID: correlation,
			Action:        action.Key,
			Tenant:        tenant,
		})

		results, err := action.Handler(ctx, query)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				p.log.Debug().Str("action", action.Key).Msg("inline query superseded")
				return
			}
			p.reportError(action.Key, tenant, err)
			continue
		}

		if err := p.platform.AnswerInline(ctx, query.QueryID, results); err != nil {
			p.reportError(action.Key, tenant, err)
			continue
		}

		p.bus.Publish(eventbus.Event{
			Kind:          eventbus.KindInlineExecutionFinished,
			CorrelationID: correlation,
			Action:        action.Key,
			Tenant:        tenant,
			Detail:        map[string]any{"results": len(results)},
		})
	}
}
