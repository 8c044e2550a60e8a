package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xmlcustomizer/syndicator/internal/storage"
)

const cursorSeparator = ","
const timeFormat = time.RFC3339Nano

// EncodeCursor turns the position of the last row of a page into an
// opaque token.
func EncodeCursor(c storage.Cursor) string {
	key := fmt.Sprintf("%s%s%d", c.CreatedAt.UTC().Format(timeFormat), cursorSeparator, c.ID)
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor parses a token made by EncodeCursor.
func DecodeCursor(encoded string) (*storage.Cursor, error) {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), cursorSeparator, 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	ts, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp in cursor: %w", err)
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id in cursor: %w", err)
	}

	return &storage.Cursor{CreatedAt: ts.UTC(), ID: id}, nil
}
