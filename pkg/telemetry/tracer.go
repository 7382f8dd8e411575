package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// Tracer is a thin span wrapper so call sites don't depend on whether
// telemetry is enabled at all.
type Tracer interface {
	Start()
	End()
	WithAttributes(attrs map[string]any) Tracer
	AddEvent(name string, attrs map[string]string)
	SetStatus(code codes.Code, message string)
	Spawn(spanName string) Tracer
}

type TracerFactory struct {
	telemetry Telemetry
}

type TracerFactoryParams struct {
	fx.In
	Telemetry Telemetry `optional:"true"`
}

func NewTracerFactory(p TracerFactoryParams) *TracerFactory {
	return &TracerFactory{telemetry: p.Telemetry}
}

func (t *TracerFactory) NewTracer(ctx context.Context, spanName string) Tracer {
	if t.telemetry == nil || t.telemetry.GetTracer() == nil {
		return &DummyTracer{}
	}
	return &spanTracer{ctx: ctx, tracer: t.telemetry.GetTracer(), name: spanName}
}

type spanTracer struct {
	ctx    context.Context
	tracer trace.Tracer
	name   string
	span   trace.Span
}

func (s *spanTracer) Start() {
	s.ctx, s.span = s.tracer.Start(s.ctx, s.name)
}

func (s *spanTracer) End() {
	if s.span != nil {
		s.span.End()
	}
}

func (s *spanTracer) WithAttributes(attrs map[string]any) Tracer {
	if s.span == nil {
		return s
	}
	for key, val := range attrs {
		switch v := val.(type) {
		case string:
			s.span.SetAttributes(attribute.String(key, v))
		case bool:
			s.span.SetAttributes(attribute.Bool(key, v))
		case int:
			s.span.SetAttributes(attribute.Int(key, v))
		case int64:
			s.span.SetAttributes(attribute.Int64(key, v))
		case uint64:
			s.span.SetAttributes(attribute.Int64(key, int64(v)))
		case float64:
			s.span.SetAttributes(attribute.Float64(key, v))
		default:
			s.span.SetAttributes(attribute.String(key, fmt.Sprint(v)))
		}
	}
	return s
}

func (s *spanTracer) AddEvent(name string, attrs map[string]string) {
	if s.span == nil {
		return
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for key, val := range attrs {
		kvs = append(kvs, attribute.String(key, val))
	}
	s.span.AddEvent(name, trace.WithAttributes(kvs...))
}

func (s *spanTracer) SetStatus(code codes.Code, message string) {
	if s.span != nil {
		s.span.SetStatus(code, message)
	}
}

func (s *spanTracer) Spawn(spanName string) Tracer {
	return &spanTracer{ctx: s.ctx, tracer: s.tracer, name: spanName}
}

// DummyTracer does nothing when telemetry is not enabled.
type DummyTracer struct{}

func (t *DummyTracer) Start()                                     {}
func (t *DummyTracer) End()                                       {}
func (t *DummyTracer) WithAttributes(attrs map[string]any) Tracer { return t }
func (t *DummyTracer) AddEvent(name string, attrs map[string]string) {
}
func (t *DummyTracer) SetStatus(code codes.Code, message string) {}
func (t *DummyTracer) Spawn(spanName string) Tracer              { return t }
