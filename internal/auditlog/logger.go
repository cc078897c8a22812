// Package auditlog durably records rejected requests for abuse
// forensics. Entries are appended as JSON lines to one file per UTC
// day; sensitive payload fields are redacted before anything touches
// disk. The trail is best effort by design: a slow or failing disk
// never delays or fails the HTTP response being served.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codepath-guard/internal/sanitize"
)

const redactionMarker = "[REDACTED]"

// sensitiveKeys are replaced by the redaction marker wherever they
// appear at the top level of a payload. Original values never reach
// durable storage.
var sensitiveKeys = []string{"password", "password_hash", "token", "session", "cookie"}

// Entry is one rejected request. Payload, when present, has already
// been redacted.
type Entry struct {
	ID             string         `json:"id"`
	Timestamp      string         `json:"timestamp"`
	ClientIdentity string         `json:"clientIdentity"`
	Endpoint       string         `json:"endpoint"`
	Errors         []string       `json:"errors"`
	Payload        map[string]any `json:"payload,omitempty"`
	UserAgent      string         `json:"userAgent"`
	Suspicious     bool           `json:"suspicious,omitempty"`

	ts time.Time
}

// Publisher mirrors entries to an external sink (Kafka). Optional.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Logger appends entries through a single writer goroutine fed by a
// buffered channel. When the queue is full the entry is dropped with a
// warning rather than blocking the request path.
type Logger struct {
	dir       string
	logger    *zap.Logger
	publisher Publisher

	entries chan Entry
	done    chan struct{}

	closeOnce sync.Once
	now       func() time.Time
}

// New creates the log directory (including parents) and starts the
// writer. publisher may be nil.
func New(dir string, queueSize int, logger *zap.Logger, publisher Publisher) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if queueSize <= 0 {
		queueSize = 1024
	}

	l := &Logger{
		dir:       dir,
		logger:    logger,
		publisher: publisher,
		entries:   make(chan Entry, queueSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}

	go l.run()
	return l, nil
}

// LogRejection queues one rejected request for persistence. The
// caller's payload map is never mutated. Non-blocking.
func (l *Logger) LogRejection(identity, endpoint string, errs []string, payload map[string]any) {
	now := l.now().UTC()

	entry := Entry{
		ID:             uuid.NewString(),
		Timestamp:      now.Format(time.RFC3339),
		ClientIdentity: identity,
		Endpoint:       endpoint,
		Errors:         errs,
		Payload:        redact(payload),
		UserAgent:      userAgentFrom(payload),
		Suspicious:     suspiciousPayload(payload),
		ts:             now,
	}

	select {
	case l.entries <- entry:
	default:
		l.logger.Warn("audit log queue full, dropping entry",
			zap.String("identity", identity),
			zap.String("endpoint", endpoint))
	}
}

// Close drains queued entries and stops the writer. LogRejection must
// not be called after Close; shutdown stops the HTTP server first.
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		close(l.entries)
		<-l.done
	})
}

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.entries {
		l.write(entry)
	}
}

func (l *Logger) write(entry Entry) {
	line, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("failed to encode audit entry", zap.Error(err))
		return
	}

	path := filepath.Join(l.dir, fmt.Sprintf("validation-%s.log", entry.ts.Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error("failed to open audit log file",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		l.logger.Error("failed to append audit entry",
			zap.String("path", path),
			zap.Error(err))
	}
	if err := file.Close(); err != nil {
		l.logger.Error("failed to close audit log file",
			zap.String("path", path),
			zap.Error(err))
	}

	if l.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.publisher.Publish(ctx, entry.ClientIdentity, line); err != nil {
			l.logger.Error("failed to publish audit entry", zap.Error(err))
		}
		cancel()
	}
}

// redact returns a shallow copy with sensitive values replaced.
func redact(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	for _, key := range sensitiveKeys {
		if _, ok := copied[key]; ok {
			copied[key] = redactionMarker
		}
	}
	return copied
}

func userAgentFrom(payload map[string]any) string {
	if payload != nil {
		if ua, ok := payload["userAgent"].(string); ok && ua != "" {
			return ua
		}
	}
	return "unknown"
}

func suspiciousPayload(payload map[string]any) bool {
	for _, v := range payload {
		if s, ok := v.(string); ok && sanitize.Suspicious(s) {
			return true
		}
	}
	return false
}
