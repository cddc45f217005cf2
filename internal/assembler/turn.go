package assembler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/applymytech/openElara/internal/docstore"
)

// Sentinel errors for chat turn parsing.
var (
	ErrInvalidTurnJSON = errors.New("assembler: invalid chat turn json")
	ErrMalformedTurn   = errors.New("assembler: malformed chat turn")
)

// TurnError is returned by ParseChatTurn. Its message is the one reported
// to callers.
type TurnError struct {
	Err   error // ErrInvalidTurnJSON or ErrMalformedTurn
	Cause error
}

// Error implements error.
func (e *TurnError) Error() string {
	if errors.Is(e.Err, ErrInvalidTurnJSON) {
		return "Invalid JSON input for chat turn: " + e.Cause.Error()
	}
	return "Chat turn object is malformed (missing id or timestamp)."
}

// Unwrap returns the sentinel.
func (e *TurnError) Unwrap() error { return e.Err }

var errMalformed = &TurnError{Err: ErrMalformedTurn}

// isoLayout is ISO-8601 local time without a sub-second part.
const isoLayout = "2006-01-02T15:04:05"

// Renderable timestamp range in epoch milliseconds: years 1 through 9999.
var (
	minTurnMillis = float64(time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	maxTurnMillis = float64(time.Date(9999, time.December, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli())
)

// Message is one entry of a chat turn's history.
type Message struct {
	Role    string
	Content string
}

// ChatTurn is a parsed save_chat_turn payload.
type ChatTurn struct {
	ID        string
	Timestamp float64 // epoch milliseconds
	Persona   string
	History   []Message
}

type turnWire struct {
	ID        json.RawMessage `json:"id"`
	Timestamp json.RawMessage `json:"timestamp"`
	Persona   json.RawMessage `json:"persona"`
	History   []messageWire   `json:"history"`
}

type messageWire struct {
	Role    *string         `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ParseChatTurn decodes a chat turn. The id may be a string or a number;
// the timestamp must be a number within years 1 to 9999. A null id or
// timestamp counts as absent.
func ParseChatTurn(raw []byte) (ChatTurn, error) {
	if !json.Valid(raw) {
		var probe any
		err := json.Unmarshal(raw, &probe)
		return ChatTurn{}, &TurnError{Err: ErrInvalidTurnJSON, Cause: err}
	}

	var w turnWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return ChatTurn{}, errMalformed
	}

	id, ok := scalarText(w.ID)
	if !ok {
		return ChatTurn{}, errMalformed
	}
	var ts float64
	if isNull(w.Timestamp) || json.Unmarshal(w.Timestamp, &ts) != nil {
		return ChatTurn{}, errMalformed
	}
	if ts < minTurnMillis || ts > maxTurnMillis {
		return ChatTurn{}, errMalformed
	}

	turn := ChatTurn{ID: id, Timestamp: ts}
	turn.Persona = personaText(w.Persona)

	for _, m := range w.History {
		role := "UNKNOWN"
		if m.Role != nil {
			role = *m.Role
		}
		turn.History = append(turn.History, Message{
			Role:    role,
			Content: contentText(m.Content),
		})
	}
	return turn, nil
}

// Render builds the stored document: one "[<time>] [<ROLE>]: <content>"
// block per non-empty message, joined by blank lines.
func (t ChatTurn) Render(loc *time.Location) string {
	stamp := time.UnixMilli(int64(math.Floor(t.Timestamp))).In(loc).Format(isoLayout)

	blocks := make([]string, 0, len(t.History))
	for _, m := range t.History {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[%s] [%s]: %s", stamp, strings.ToUpper(m.Role), content))
	}
	return strings.Join(blocks, "\n\n")
}

// Metadata returns the chat_history metadata for the turn.
func (t ChatTurn) Metadata() docstore.Metadata {
	return docstore.Metadata{
		Source:    t.ID,
		Timestamp: docstore.NewTimestamp(t.Timestamp),
		Persona:   t.Persona,
	}
}

// AddChatTurn parses, renders and sanitizes a chat turn and stores it in
// chat_history under the turn id. A turn that renders or sanitizes to
// nothing is a successful no-op.
func (a *Assembler) AddChatTurn(ctx context.Context, raw []byte) MutationResult {
	ctx, c := a.begin(ctx, OpSaveTurn, docstore.ChatHistory)
	defer c.end()

	turn, err := ParseChatTurn(raw)
	if err != nil {
		c.fail(err)
		return failed(err)
	}

	document := turn.Render(a.loc)
	if strings.TrimSpace(document) == "" {
		return succeeded("Empty chat turn, skipping save.")
	}

	clean, err := a.sanitizer.Sanitize(document)
	if err != nil {
		a.logger.Warn("chat turn sanitization failed, storing placeholder", "id", turn.ID, "error", err)
	}
	if clean == "" {
		a.logger.Debug("document empty after sanitization", "id", turn.ID)
		return succeeded("Document empty after sanitization, skipped.")
	}

	coll, err := a.client.OpenCollection(ctx, docstore.ChatHistory)
	if err != nil {
		c.fail(err)
		return failed(err)
	}
	if err := coll.Add(ctx, []string{clean}, []docstore.Metadata{turn.Metadata()}, []string{turn.ID}); err != nil {
		c.fail(err)
		return failed(err)
	}

	a.logger.Debug("saved chat turn", "id", turn.ID, "chars", len(clean), "persona", turn.Persona)
	return succeeded(fmt.Sprintf("Saved chat turn %s.", turn.ID))
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// scalarText returns a JSON string or number as text.
func scalarText(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// personaText keeps a non-empty string or a non-zero number.
func personaText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f != 0 {
		return string(bytes.TrimSpace(raw))
	}
	return ""
}

// contentText renders message content: strings as is, null as empty,
// arrays and objects as compact JSON, other scalars as their JSON text.
func contentText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
