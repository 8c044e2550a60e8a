package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmlcustomizer/syndicator/internal/storage"
)

func TestCursorRoundTrip(t *testing.T) {
	in := storage.Cursor{
		CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.FixedZone("CEST", 2*3600)),
		ID:        42,
	}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, time.UTC, out.CreatedAt.Location())
	assert.Equal(t, int64(42), out.ID)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	enc := func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

	for name, raw := range map[string]string{
		"not base64":   "%%%",
		"no separator": enc("2024-05-01T12:00:00Z"),
		"bad time":     enc("yesterday,1"),
		"bad id":       enc("2024-05-01T12:00:00Z,abc"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor(raw)
			assert.Error(t, err)
		})
	}
}
