package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTextfile(t *testing.T) {
	NodesEmittedTotal.WithLabelValues("Func").Inc()
	path := filepath.Join(t.TempDir(), "out", "apisurface.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `apisurface_nodes_emitted_total{kind="Func"}`) {
		t.Fatalf("expected node counter in textfile, got:\n%s", data)
	}
}

func TestWriteTextfile_EmptyPathIsNoop(t *testing.T) {
	if err := WriteTextfile(""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestInitTracing_RequiresEndpoint(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{ServiceName: "apisurface"}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestTracer_NoopBeforeInit(t *testing.T) {
	_, span := Tracer.Start(context.Background(), "test")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Fatal("expected a no-op span before a provider is installed")
	}
}
