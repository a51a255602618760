package handlers

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/session"
)

type brokenMeter struct {
	noop.Meter
}

func (brokenMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errors.New("meter closed")
}

func TestNewFunnelHandlersLogsMetricFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := NewFunnelHandlers(session.NewRegistry(session.RegistryConfig{}), nil, nil, nil, FunnelOptions{
		Meter:  brokenMeter{},
		Logger: zap.New(core),
	})
	if logs.FilterMessage("unable to register dropped events metric").Len() != 1 {
		t.Fatalf("expected metric registration failure to be logged, got %+v", logs.All())
	}
	if h.dropped != nil {
		t.Fatalf("expected no counter after a failed registration")
	}
}
