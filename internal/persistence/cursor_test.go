package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	token := EncodeCursor(&domain.Cursor{RecordedAt: at, ID: "entry-1"})
	require.NotEmpty(t, token)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, cursor.RecordedAt.Equal(at))
	require.Equal(t, "entry-1", cursor.ID)
}

func TestDecodeCursorEmpty(t *testing.T) {
	cursor, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, cursor)
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	require.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = DecodeCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	require.True(t, errors.Is(err, domain.ErrInvalidInput))
}
