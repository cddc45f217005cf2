package security

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newRedactingLogger(buf *bytes.Buffer, r *Redactor) *slog.Logger {
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewRedactingHandler(inner, r))
}

func TestRedactingHandler_RedactsMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newRedactingLogger(&buf, NewRedactor()).Info("key is sk-abcdefghijklmnopqrstuvwxyz")

	output := buf.String()
	if strings.Contains(output, "sk-abcdefghijklmnopqrstuvwxyz") {
		t.Errorf("secret found in log output: %s", output)
	}
	if !strings.Contains(output, RedactPlaceholder) {
		t.Errorf("expected placeholder in output: %s", output)
	}
}

func TestRedactingHandler_RedactsAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("gateway-secret")

	newRedactingLogger(&buf, r).Warn("auth failure", "presented", "gateway-secret", "collection", "chat_history")

	output := buf.String()
	if strings.Contains(output, "gateway-secret") {
		t.Errorf("secret found in attributes: %s", output)
	}
	if !strings.Contains(output, "chat_history") {
		t.Errorf("safe value missing from output: %s", output)
	}
}

func TestRedactingHandler_RedactsErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := errors.New("invalid chat turn: Bearer abcdefghijklmnop")
	newRedactingLogger(&buf, NewRedactor()).Error("save failed", "error", err)

	if strings.Contains(buf.String(), "abcdefghijklmnop") {
		t.Errorf("secret found in error attribute: %s", buf.String())
	}
}

func TestRedactingHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("persistent-secret")

	logger := newRedactingLogger(&buf, r).With("token", "persistent-secret").WithGroup("req")
	logger.Info("request", slog.Group("auth", slog.String("key", "sk-abcdefghijklmnopqrstuvwxyz")))

	output := buf.String()
	if strings.Contains(output, "persistent-secret") || strings.Contains(output, "sk-abcdefghij") {
		t.Errorf("secret found in output: %s", output)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	handler := NewRedactingHandler(inner, NewRedactor())

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled with warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled with warn level")
	}
}

func TestRedactingHandler_NoSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newRedactingLogger(&buf, NewRedactor()).Info("saved chat turn", "id", "turn-1")

	output := buf.String()
	if strings.Contains(output, RedactPlaceholder) {
		t.Errorf("unexpected redaction in output: %s", output)
	}
	if !strings.Contains(output, "turn-1") {
		t.Errorf("attribute missing from output: %s", output)
	}
}
