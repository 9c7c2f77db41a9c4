// Package telemetry exports flow runs as OpenTelemetry traces.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"nodeflow"
	"nodeflow/flows"
)

// TracerName names the tracer Monitor uses by default.
const TracerName = "nodeflow"

// Setup configures an OTLP/gRPC tracer provider as the global provider.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Monitor turns flow events into spans: one "flow.run" span per run with a
// "flow.node" child per executed node.
type Monitor struct {
	tracer    trace.Tracer
	runSpans  sync.Map // run id -> trace.Span
	nodeSpans sync.Map // run id + node id -> trace.Span
}

var _ flows.FlowMonitor = (*Monitor)(nil)

// NewMonitor uses tracer, or the global provider's tracer when nil.
func NewMonitor(tracer trace.Tracer) *Monitor {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &Monitor{tracer: tracer}
}

func (m *Monitor) Notify(ctx context.Context, e flows.FlowEvent) {
	switch e.Type {
	case flows.FlowEventTypeFlowStart:
		_, span := m.tracer.Start(ctx, "flow.run", trace.WithTimestamp(e.Timestamp))
		span.SetAttributes(
			attribute.String("flow.run_id", e.RunID),
			attribute.String("flow.start_node", e.Node),
		)
		m.runSpans.Store(e.RunID, span)

	case flows.FlowEventTypeNodeStart:
		parent := ctx
		if v, ok := m.runSpans.Load(e.RunID); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := m.tracer.Start(parent, "flow.node", trace.WithTimestamp(e.Timestamp))
		span.SetAttributes(
			attribute.String("flow.node.id", e.Node),
			attribute.String("flow.node.type", string(e.NodeType)),
		)
		m.nodeSpans.Store(nodeKey(e), span)

	case flows.FlowEventTypeNodeEnd:
		v, ok := m.nodeSpans.LoadAndDelete(nodeKey(e))
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.StringSlice("flow.node.outputs", e.Outputs.Sockets()))
		span.End(trace.WithTimestamp(e.Timestamp))

	case flows.FlowEventTypeNodeError:
		v, ok := m.nodeSpans.LoadAndDelete(nodeKey(e))
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End(trace.WithTimestamp(e.Timestamp))

	case flows.FlowEventTypeNodeSkipped, flows.FlowEventTypeNodeQueued:
		if v, ok := m.runSpans.Load(e.RunID); ok {
			v.(trace.Span).AddEvent(string(e.Type), trace.WithAttributes(
				attribute.String("flow.node.id", e.Node),
				attribute.String("flow.socket", e.Socket),
			), trace.WithTimestamp(e.Timestamp))
		}

	case flows.FlowEventTypeFlowComplete:
		v, ok := m.runSpans.LoadAndDelete(e.RunID)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.String("flow.status", string(e.Status)))
		if e.Status == nodeflow.StatusFailed {
			if e.Err != nil {
				span.RecordError(e.Err)
			}
			span.SetStatus(codes.Error, errString(e.Err))
		}
		span.End(trace.WithTimestamp(e.Timestamp))
	}
}

func nodeKey(e flows.FlowEvent) string {
	return e.RunID + "/" + e.Node
}

func errString(err error) string {
	if err == nil {
		return string(nodeflow.StatusFailed)
	}
	return err.Error()
}
