package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/requestctx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/session"
)

const quoteEvent = "quote"

type streamEvent struct {
	name string
	data []byte
}

// eventStream buffers subject notifications for one SSE client. push never
// blocks: a full buffer drops the event.
type eventStream struct {
	ch      chan streamEvent
	dropped atomic.Int64
	logger  *zap.Logger
}

func newEventStream(size int, logger *zap.Logger) *eventStream {
	return &eventStream{ch: make(chan streamEvent, size), logger: logger}
}

func (s *eventStream) push(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("event encode failed", zap.String("event", name), zap.Error(err))
		return
	}
	select {
	case s.ch <- streamEvent{name: name, data: data}:
	default:
		s.dropped.Add(1)
		s.logger.Debug("event dropped", zap.String("event", name))
	}
}

type formEvent struct {
	funnel.FormState
	FormValid bool `json:"formValid"`
}

// subscribeAll attaches one observer per subject. Subscribing delivers the
// current state of each subject straight away. Must run under the funnel lock.
func subscribeAll(f *funnel.Funnel, s *eventStream) []func() {
	quote := func() { s.push(quoteEvent, f.Quote()) }
	return []func(){
		f.Options.Subscribe(func(st funnel.NonBundleState) {
			s.push(f.Options.Name(), st)
			quote()
		}),
		f.Bundle.Subscribe(func(st funnel.BundleState) {
			s.push(f.Bundle.Name(), st)
			quote()
		}),
		f.Panels.Subscribe(func(st funnel.PanelsState) {
			s.push(f.Panels.Name(), st)
		}),
		f.Delivery.Subscribe(func(st funnel.DeliveryState) {
			s.push(f.Delivery.Name(), st)
			quote()
		}),
		f.Payment.Subscribe(func(st funnel.PaymentState) {
			s.push(f.Payment.Name(), st)
		}),
		f.Form.Subscribe(func(st funnel.FormState) {
			s.push(f.Form.Name(), formEvent{FormState: st, FormValid: f.Form.AreAllFieldsValid()})
		}),
	}
}

// streamEvents sends one server-sent event per subject notification until
// the client leaves or the funnel is removed.
func (h *FunnelHandlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := funnelID(r)
	lang := requestctx.Locale(ctx)
	logger := requestctx.Logger(ctx).With(zap.String("funnel_id", id))

	done, ok := h.registry.Done(id)
	if !ok {
		writeFunnelError(ctx, w, h.bundle, lang, session.ErrFunnelNotFound)
		return
	}

	stream := newEventStream(h.buffer, logger)
	var cancels []func()
	if err := h.registry.With(id, func(f *funnel.Funnel) error {
		cancels = subscribeAll(f, stream)
		return nil
	}); err != nil {
		writeFunnelError(ctx, w, h.bundle, lang, err)
		return
	}
	defer func() {
		// the funnel may already be gone, in which case there is nothing to detach
		_ = h.registry.With(id, func(*funnel.Funnel) error {
			for _, cancel := range cancels {
				cancel()
			}
			return nil
		})
		if n := stream.dropped.Load(); n > 0 {
			if h.dropped != nil {
				h.dropped.Add(context.Background(), n)
			}
			logger.Info("event stream closed with drops", zap.Int64("dropped", n))
		}
	}()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logger.Warn("event stream unsupported", zap.Error(err))
		return
	}

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
			_ = rc.Flush()
			return
		case <-keepAlive.C:
			h.registry.Touch(id)
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev := <-stream.ch:
			seq++
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, ev.name, ev.data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
