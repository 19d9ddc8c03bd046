package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/hungson175/teamvoice/internal/observability"
)

var testMetrics = observability.NewMetrics("agentstest")

func TestDispatchSendsToLayer(t *testing.T) {
	layer := NewMockSessionLayer()
	d := NewDispatcher(layer, testMetrics)

	if err := d.Dispatch(context.Background(), "backend", "dev", "deploy the service"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	sent := layer.Sent()
	if len(sent) != 1 {
		t.Fatalf("len(sent) = %d, want 1", len(sent))
	}
	if sent[0].Text != "deploy the service" || sent[0].SessionRef != "backend" {
		t.Fatalf("sent[0] = %+v", sent[0])
	}
}

func TestDispatchSurfacesLayerErrorWithoutRetry(t *testing.T) {
	layer := NewMockSessionLayer()
	layer.SendErr = errors.New("hub unreachable")
	d := NewDispatcher(layer, testMetrics)

	err := d.Dispatch(context.Background(), "backend", "dev", "deploy")
	if err == nil {
		t.Fatalf("Dispatch() expected error")
	}
	if len(layer.Sent()) != 0 {
		t.Fatalf("command recorded despite failure")
	}
}

func TestDispatchRejectsEmptySessionRef(t *testing.T) {
	d := NewDispatcher(NewMockSessionLayer(), testMetrics)
	if err := d.Dispatch(context.Background(), "", "dev", "deploy"); err == nil {
		t.Fatalf("Dispatch() expected error for empty session ref")
	}
}
