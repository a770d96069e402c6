package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRequiresAddress(t *testing.T) {
	if err := Serve(context.Background(), "", nil, nil); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Serve(ctx, "127.0.0.1:0", prometheus.NewRegistry(), nil); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
