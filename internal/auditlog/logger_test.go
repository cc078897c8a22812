package auditlog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLogger(t *testing.T, publisher Publisher) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	logger, err := New(dir, 16, zap.NewNop(), publisher)
	require.NoError(t, err)
	return logger, dir
}

// readEntries closes the logger to flush the queue, then decodes the
// daily file back into entries.
func readEntries(t *testing.T, logger *Logger, dir string, day string) []Entry {
	t.Helper()
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "validation-"+day+".log"))
	require.NoError(t, err)

	var entries []Entry
	for _, line := range splitLines(data) {
		var entry Entry
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	return lines
}

func TestSensitiveFieldsRedactedOnDisk(t *testing.T) {
	logger, dir := newTestLogger(t, nil)
	logger.now = func() time.Time {
		return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	}

	payload := map[string]any{
		"email":    "user@example.com",
		"password": "p@ssw0rd",
		"token":    "abc123",
	}
	logger.LogRejection("10.0.0.1", "/api/v1/auth/login", []string{"password é obrigatório"}, payload)

	entries := readEntries(t, logger, dir, "2025-03-10")
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "[REDACTED]", entry.Payload["password"])
	assert.Equal(t, "[REDACTED]", entry.Payload["token"])
	assert.Equal(t, "user@example.com", entry.Payload["email"])
	assert.Equal(t, "10.0.0.1", entry.ClientIdentity)
	assert.Equal(t, "/api/v1/auth/login", entry.Endpoint)
	assert.NotEmpty(t, entry.ID)

	raw, err := os.ReadFile(filepath.Join(dir, "validation-2025-03-10.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "p@ssw0rd")
	assert.NotContains(t, string(raw), "abc123")
}

func TestCallerPayloadNotMutated(t *testing.T) {
	logger, _ := newTestLogger(t, nil)
	defer logger.Close()

	payload := map[string]any{"password": "secret"}
	logger.LogRejection("10.0.0.1", "/api/v1/auth/login", []string{"invalid"}, payload)

	assert.Equal(t, "secret", payload["password"])
}

func TestUserAgentExtraction(t *testing.T) {
	logger, dir := newTestLogger(t, nil)
	logger.now = func() time.Time {
		return time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	}

	logger.LogRejection("a", "/x", []string{"e"}, map[string]any{"userAgent": "curl/8.0"})
	logger.LogRejection("b", "/x", []string{"e"}, map[string]any{"name": "joao"})
	logger.LogRejection("c", "/x", []string{"e"}, nil)

	entries := readEntries(t, logger, dir, "2025-03-11")
	require.Len(t, entries, 3)
	assert.Equal(t, "curl/8.0", entries[0].UserAgent)
	assert.Equal(t, "unknown", entries[1].UserAgent)
	assert.Equal(t, "unknown", entries[2].UserAgent)
	assert.Nil(t, entries[2].Payload)
}

func TestSuspiciousPayloadFlagged(t *testing.T) {
	logger, dir := newTestLogger(t, nil)
	logger.now = func() time.Time {
		return time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	}

	logger.LogRejection("a", "/x", []string{"e"},
		map[string]any{"name": "<script>alert(1)</script>"})
	logger.LogRejection("b", "/x", []string{"e"},
		map[string]any{"name": "maria"})

	entries := readEntries(t, logger, dir, "2025-03-12")
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Suspicious)
	assert.False(t, entries[1].Suspicious)
}

func TestDailyFileNameFollowsUTCDay(t *testing.T) {
	logger, dir := newTestLogger(t, nil)
	// 23:30 in UTC-3 is already the next day in UTC.
	logger.now = func() time.Time {
		loc := time.FixedZone("BRT", -3*60*60)
		return time.Date(2025, 3, 13, 23, 30, 0, 0, loc)
	}

	logger.LogRejection("a", "/x", []string{"e"}, nil)
	logger.Close()

	_, err := os.Stat(filepath.Join(dir, "validation-2025-03-14.log"))
	assert.NoError(t, err)
}

type capturePublisher struct {
	keys   []string
	values [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, key string, value []byte) error {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

func TestEntriesMirroredToPublisher(t *testing.T) {
	publisher := &capturePublisher{}
	logger, _ := newTestLogger(t, publisher)

	logger.LogRejection("10.0.0.9", "/api/v1/quizzes/submit", []string{"answers é obrigatório"}, nil)
	logger.Close()

	require.Len(t, publisher.keys, 1)
	assert.Equal(t, "10.0.0.9", publisher.keys[0])

	var entry Entry
	require.NoError(t, json.Unmarshal(publisher.values[0], &entry))
	assert.Equal(t, "/api/v1/quizzes/submit", entry.Endpoint)
}

func TestCloseIdempotent(t *testing.T) {
	logger, _ := newTestLogger(t, nil)
	logger.Close()
	logger.Close()
}
