package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func newJSONAuditLogger(config AuditConfig) (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewAuditLogger(logger, config), &buf
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("audit output is not JSON: %v (%q)", err, buf.String())
	}
	return rec
}

func TestToolInvocation_Complete(t *testing.T) {
	ti := NewToolInvocation("gmail_get_email_content").WithService("gmail").WithRemoteID("18c2")
	if ti.StartTime.IsZero() {
		t.Fatal("StartTime should be set")
	}

	ti.Complete(false, errors.New("not found"))
	if ti.Success {
		t.Error("Success should be false")
	}
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
	if ti.Error != "not found" {
		t.Errorf("Error = %q", ti.Error)
	}
	if ti.Duration < 0 {
		t.Error("Duration should not be negative")
	}
}

func TestAuditLogger_Success(t *testing.T) {
	al, buf := newJSONAuditLogger(AuditConfig{Enabled: true})

	ti := NewToolInvocation("calendar_create_event").WithService("calendar").WithRemoteID("evt-1")
	al.LogToolInvocation(context.Background(), ti.Complete(true, nil))

	rec := decodeRecord(t, buf)
	if rec["msg"] != "tool_executed" || rec["level"] != "INFO" {
		t.Errorf("unexpected record header: %v", rec)
	}
	if rec["tool"] != "calendar_create_event" || rec["service"] != "calendar" {
		t.Errorf("unexpected record fields: %v", rec)
	}
	if rec["component"] != "audit" {
		t.Errorf("component = %v, want audit", rec["component"])
	}
	if _, ok := rec["remote_id"]; ok {
		t.Error("remote_id must not be logged by default")
	}
}

func TestAuditLogger_IncludeRemoteIDs(t *testing.T) {
	al, buf := newJSONAuditLogger(AuditConfig{Enabled: true, IncludeRemoteIDs: true})

	ti := NewToolInvocation("gmail_get_email_content").WithRemoteID("18c2")
	al.LogToolInvocation(context.Background(), ti.Complete(false, errors.New("boom")))

	rec := decodeRecord(t, buf)
	if rec["msg"] != "tool_failed" || rec["level"] != "WARN" {
		t.Errorf("unexpected record header: %v", rec)
	}
	if rec["remote_id"] != "18c2" {
		t.Errorf("remote_id = %v, want 18c2", rec["remote_id"])
	}
	if rec["error"] != "boom" {
		t.Errorf("error = %v, want boom", rec["error"])
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	al, buf := newJSONAuditLogger(AuditConfig{Enabled: false})
	al.LogToolInvocation(context.Background(), NewToolInvocation("x").Complete(true, nil))
	if buf.Len() != 0 {
		t.Errorf("disabled audit logger wrote %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogToolInvocation(context.Background(), NewToolInvocation("x").Complete(true, nil))
}
