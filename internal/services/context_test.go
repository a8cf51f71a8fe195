package services_test

import (
	"context"
	"testing"

	"openbq/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-123")
	ctx = services.WithUnit(ctx, "/data/face/a.jpg")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-123" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if unit, ok := services.UnitFromContext(ctx); !ok || unit != "/data/face/a.jpg" {
		t.Fatalf("unexpected unit: %v %v", unit, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "")
	ctx = services.WithUnit(ctx, "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id")
	}
	if _, ok := services.UnitFromContext(ctx); ok {
		t.Fatal("expected no unit")
	}
}
