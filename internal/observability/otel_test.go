package observability

import "testing"

func TestOtelSampleRatio(t *testing.T) {
	cases := map[string]float64{
		"":     1,
		"0.25": 0.25,
		"-3":   0,
		"7":    1,
		"junk": 1,
	}
	for raw, want := range cases {
		t.Setenv("OTEL_SAMPLER_RATIO", raw)
		if got := otelSampleRatio(); got != want {
			t.Fatalf("OTEL_SAMPLER_RATIO=%q: expected %v, got %v", raw, want, got)
		}
	}
}

func TestOtelHeaders(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, broken ,=nokey,tenant=diet")
	headers := otelHeaders()
	if len(headers) != 2 || headers["x-api-key"] != "abc" || headers["tenant"] != "diet" {
		t.Fatalf("unexpected headers: %v", headers)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")
	if headers := otelHeaders(); headers != nil {
		t.Fatalf("expected nil headers, got %v", headers)
	}
}

func TestInitOTelDisabledReturnsNoop(t *testing.T) {
	shutdown := InitOTel(t.Context(), nil, OtelConfig{Enabled: false})
	if shutdown == nil {
		t.Fatalf("expected non-nil shutdown")
	}
	if err := shutdown(t.Context()); err != nil {
		t.Fatalf("expected noop shutdown, got %v", err)
	}
}
