// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"strings"
	"time"

	"example.com/focusforge/internal/domain"
)

// EncodeCursor serialises a history cursor to an opaque, URL-safe token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.RecordedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.InputError("cursor is not valid base64")
	}
	recordedAt, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, domain.InputError("cursor has an invalid format")
	}
	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, domain.InputError("cursor timestamp is invalid")
	}
	return &domain.Cursor{RecordedAt: ts, ID: id}, nil
}
