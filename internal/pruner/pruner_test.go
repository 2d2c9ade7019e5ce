package pruner

import (
	"context"
	"testing"

	"github.com/memoria-dev/memoria/internal/config"
)

func TestPruneDisabledReturnsInputUnchanged(t *testing.T) {
	p := New(config.PrunerConfig{Enabled: false}, "")
	got := p.Prune(context.Background(), "hello world")
	if got != "hello world" {
		t.Fatalf("expected unchanged input, got %q", got)
	}
}

func TestPruneUnreachableFailsOpen(t *testing.T) {
	p := New(config.PrunerConfig{Enabled: true, URL: "http://127.0.0.1:1", TimeoutMs: 1000}, "")
	got := p.Prune(context.Background(), "hello world")
	if got != "hello world" {
		t.Fatalf("expected fail-open unchanged input, got %q", got)
	}
}

func TestPruneNilReceiverReturnsInputUnchanged(t *testing.T) {
	var p *Pruner
	got := p.Prune(context.Background(), "hello world")
	if got != "hello world" {
		t.Fatalf("expected unchanged input from nil pruner, got %q", got)
	}
}
