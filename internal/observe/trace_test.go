package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTracer makes an in-memory tracer provider global for the test.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLog routes the default logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

var traceIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestBuildStageSpans(t *testing.T) {
	exp := installTracer(t)

	ctx, build := StartSpan(context.Background(), "world.build")
	_, load := StartSpan(ctx, "registry")
	EndSpan(load, nil)
	_, fill := StartSpan(ctx, "pool")
	EndSpan(fill, errors.New("pool: 3 candidate items do not fit into 2 fillable locations"))
	EndSpan(build, nil)

	spans := exp.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("recorded %d spans, want 3", len(spans))
	}
	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	root := byName["world.build"]
	for _, stage := range []string{"registry", "pool"} {
		s := byName[stage]
		if s.Parent.SpanID() != root.SpanContext.SpanID() {
			t.Errorf("%s span is not a child of world.build", stage)
		}
	}
	if byName["registry"].Status.Code != codes.Unset {
		t.Errorf("registry status = %v, want unset", byName["registry"].Status.Code)
	}
	if pool := byName["pool"]; pool.Status.Code != codes.Error || len(pool.Events) == 0 {
		t.Errorf("pool status = %v with %d events, want recorded error", pool.Status.Code, len(pool.Events))
	}
}

func TestWithPlayer(t *testing.T) {
	exp := installTracer(t)
	buf := captureLog(t)

	if _, _, ok := PlayerFrom(context.Background()); ok {
		t.Error("PlayerFrom on a bare context reported a player")
	}

	ctx := WithPlayer(context.Background(), 3, "Meta Knight")
	if slot, name, ok := PlayerFrom(ctx); !ok || slot != 3 || name != "Meta Knight" {
		t.Fatalf("PlayerFrom = %d, %q, %v", slot, name, ok)
	}

	ctx, build := StartSpan(ctx, "world.Build")
	_, stage := StartSpan(ctx, "world.pool")
	Logger(ctx).Info("world built", "pool", 11)
	EndSpan(stage, nil)
	EndSpan(build, nil)

	for _, s := range exp.GetSpans() {
		attrs := map[string]string{}
		for _, kv := range s.Attributes {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		if attrs["kirbyam.player"] != "3" || attrs["kirbyam.player_name"] != "Meta Knight" {
			t.Errorf("span %s attributes = %v, want player 3 Meta Knight", s.Name, attrs)
		}
	}

	out := buf.String()
	if !strings.Contains(out, "player=3") || !strings.Contains(out, `player_name="Meta Knight"`) {
		t.Errorf("log line lacks player attributes: %s", out)
	}
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	installTracer(t)
	seen := make(map[string]bool)
	for range 50 {
		ctx, span := StartSpan(context.Background(), "kirbyam.generate")
		cid := CorrelationID(ctx)
		span.End()
		if !traceIDPattern.MatchString(cid) {
			t.Fatalf("correlation id %q is not a trace id", cid)
		}
		if seen[cid] {
			t.Fatalf("duplicate correlation id %s", cid)
		}
		seen[cid] = true
	}
}

func TestLogger(t *testing.T) {
	installTracer(t)

	tests := []struct {
		name      string
		withSpan  bool
		wantTrace bool
	}{
		{"inside span", true, true},
		{"no span", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLog(t)
			ctx := context.Background()
			if tc.withSpan {
				c, s := StartSpan(ctx, "ledger.verify")
				defer s.End()
				ctx = c
			}

			Logger(ctx).Warn("published key no longer present", "key", "SHARD_KING_GOLEM")

			out := buf.String()
			hasTrace := strings.Contains(out, "trace_id=") && strings.Contains(out, "span_id=")
			if hasTrace != tc.wantTrace {
				t.Errorf("trace attributes present = %v, want %v: %s", hasTrace, tc.wantTrace, out)
			}
			if !strings.Contains(out, "key=SHARD_KING_GOLEM") {
				t.Errorf("log line lost its attributes: %s", out)
			}
		})
	}
}
