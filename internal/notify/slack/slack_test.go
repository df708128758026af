package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/aegis/internal/triage"
	"github.com/linnemanlabs/go-core/log"
)

func samplePass() *triage.PassResult {
	return &triage.PassResult{
		ID:        "01JN123",
		StartedAt: time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
		Duration:  1.2,
		Items:     12,
		Changed:   4,
		Actions: []triage.ActionRequired{
			{
				Priority:        triage.ActionPriorityUrgent,
				Reason:          "2 critical detections need immediate review",
				WorkItemIDs:     []string{"a", "b"},
				SuggestedAction: triage.ActionManualReview,
			},
		},
		Digest: "Action required:\n  urgent: 1\n  high: 0\n  medium: 0",
	}
}

func TestNotify_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	if err := n.Notify(context.Background(), samplePass()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, digest, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	// Verify header carries the action count and the urgent emoji
	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "1 actions") {
		t.Errorf("header text = %q, want to contain action count", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle for an urgent action")
	}
}

func TestNotify_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop())
	if err := n.Notify(context.Background(), &triage.PassResult{}); err != nil {
		t.Fatalf("Notify with empty URL should be no-op, got: %v", err)
	}
}

func TestNotify_TruncatesLongDigest(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Notify(context.Background(), &triage.PassResult{
		ID:     "01JN456",
		Digest: strings.Repeat("x", 4000),
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks := got["blocks"].([]any)
	digestSection := blocks[4].(map[string]any)
	text := digestSection["text"].(map[string]any)["text"].(string)

	// Text includes the "*Digest*\n\n" prefix, so the digest portion is what
	// follows and should be truncated to maxDigestLen chars.
	if len(text) > maxDigestLen+len("*Digest*\n\n") {
		t.Errorf("digest text length = %d, expected <= %d", len(text), maxDigestLen+len("*Digest*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated digest to end with ...")
	}
}

func TestUrgencyEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		actions []triage.ActionRequired
		want    string
	}{
		{"urgent", []triage.ActionRequired{{Priority: triage.ActionPriorityUrgent}}, "\U0001f534"},
		{"high", []triage.ActionRequired{{Priority: triage.ActionPriorityHigh}}, "\U0001f7e1"},
		{"urgent beats high", []triage.ActionRequired{{Priority: triage.ActionPriorityHigh}, {Priority: triage.ActionPriorityUrgent}}, "\U0001f534"},
		{"medium only", []triage.ActionRequired{{Priority: triage.ActionPriorityMedium}}, "\U0001f7e2"},
		{"empty", nil, "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := urgencyEmoji(tt.actions)
			if got != tt.want {
				t.Errorf("urgencyEmoji(%v) = %q, want %q", tt.actions, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("All clear. Nothing needs your attention.", "", 0, 0)
	f.Add("Action required:\n  urgent: 2", "3 detections await manual review", 10, 4)
	f.Add("", "", -1, -1)
	f.Add("digest\x00\x01\x02", "reason\nline", 1000000, 0)
	f.Add(strings.Repeat("A", 10000), strings.Repeat("r", 5000), 3, 3)
	f.Add("*bold* _italic_ <@U123>", "```code``` and <http://example.com|link>", 2, 1)

	f.Fuzz(func(t *testing.T, digest, reason string, items, changed int) {
		pr := &triage.PassResult{
			ID:        "fuzz-id",
			StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Duration:  1.0,
			Items:     items,
			Changed:   changed,
			Digest:    digest,
		}
		if reason != "" {
			pr.Actions = []triage.ActionRequired{{
				Priority: triage.ActionPriorityHigh,
				Reason:   reason,
			}}
		}

		// Must not panic
		msg := buildMessage(pr)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		// Must round-trip
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestNotify_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Notify(context.Background(), &triage.PassResult{ID: "01JN789"})
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
