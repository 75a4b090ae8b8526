package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123, time.FixedZone("x", 3600)), ID: uuid.New()}
	encoded := EncodeCursor(in)
	require.NotContains(t, encoded, "+")
	require.NotContains(t, encoded, "/")
	require.NotContains(t, encoded, "=")

	out, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.True(t, in.CreatedAt.Equal(out.CreatedAt))
	require.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	out, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, out)

	for _, bad := range []string{"%%%", "bm90LWpzb24", EncodeCursor(Cursor{})} {
		_, err := ParseCursor(bad)
		require.True(t, errors.Is(err, ErrInvalidCursor), "cursor %q: %v", bad, err)
	}
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, 8, LimitWithBuffer(7))
}

func TestTrim(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{base.Add(3), uuid.New()}, {base.Add(2), uuid.New()}, {base.Add(1), uuid.New()}}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 2, key)
	require.Len(t, page, 2)
	c, err := ParseCursor(next)
	require.NoError(t, err)
	require.Equal(t, rows[1].id, c.ID)

	page, next = Trim(rows[2:], 2, key)
	require.Len(t, page, 1)
	require.Empty(t, next)
}
