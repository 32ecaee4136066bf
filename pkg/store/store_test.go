package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zen-systems/routegate/pkg/policy"
	"github.com/zen-systems/routegate/pkg/provider"
	"github.com/zen-systems/routegate/pkg/router"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "traces.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(id string, status router.Status) *router.Result {
	return &router.Result{
		RequestID:   id,
		TaskType:    policy.TaskDiagramERD,
		FinalStatus: status,
		QualityScore: 88,
		Attempts: []router.Attempt{
			{
				Provider: provider.Descriptor{
					ProviderID:       "local",
					ModelID:          "m1",
					IsLocal:          true,
					MaxContextTokens: 8000,
					CostClass:        provider.CostFree,
				},
				CompressedContextSize: 1200,
				QualityScore:          70,
				Outcome:               router.OutcomeLowQuality,
			},
			{
				Provider: provider.Descriptor{
					ProviderID:       "google",
					ModelID:          "gemini-2.0-pro",
					MaxContextTokens: 128000,
					CostClass:        provider.CostMetered,
				},
				CompressedContextSize: 1200,
				QualityScore:          88,
				Outcome:               router.OutcomeAccepted,
			},
		},
		ElapsedMS: 4200,
	}
}

func TestSaveAndGetTrace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveTrace(ctx, sampleResult("req-1", router.StatusAccepted)); err != nil {
		t.Fatalf("save trace: %v", err)
	}

	record, err := s.GetTrace(ctx, "req-1")
	if err != nil {
		t.Fatalf("get trace: %v", err)
	}

	if record.FinalStatus != string(router.StatusAccepted) {
		t.Fatalf("status %s, want accepted", record.FinalStatus)
	}
	if record.QualityScore != 88 || record.ElapsedMS != 4200 {
		t.Fatalf("scalar fields lost: score=%d elapsed=%d", record.QualityScore, record.ElapsedMS)
	}
	if len(record.Attempts) != 2 {
		t.Fatalf("attempt trace lost: %d attempts", len(record.Attempts))
	}
	if record.Attempts[1].Provider.ProviderID != "google" || record.Attempts[1].Outcome != router.OutcomeAccepted {
		t.Fatalf("attempt detail lost: %+v", record.Attempts[1])
	}
	if record.CreatedAt.IsZero() {
		t.Fatalf("created_at not recorded")
	}
}

func TestGetTraceMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetTrace(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestListTracesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"req-a", "req-b", "req-c"} {
		if err := s.SaveTrace(ctx, sampleResult(id, router.StatusDegraded)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
		// created_at has nanosecond precision; keep insert order observable.
		time.Sleep(2 * time.Millisecond)
	}

	records, err := s.ListTraces(ctx, 2)
	if err != nil {
		t.Fatalf("list traces: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("limit not honored: got %d records", len(records))
	}
	if records[0].RequestID != "req-c" || records[1].RequestID != "req-b" {
		t.Fatalf("expected newest first, got %s then %s", records[0].RequestID, records[1].RequestID)
	}

	// A non-positive limit falls back to the default window.
	records, err = s.ListTraces(ctx, 0)
	if err != nil {
		t.Fatalf("list traces default limit: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected all 3 records, got %d", len(records))
	}
}
