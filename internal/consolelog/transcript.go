package consolelog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Transcript writes one line per session lifecycle event (connect,
// handshake, state transition, disconnect, error) to a daily-named file,
// reopening at midnight -- the same daily-file-rotation idea as the
// teacher's log_init(daily_names=true, dir) in log.go, generalized from a
// fixed C-style date format to an strftime pattern. Deliberately excludes
// raw input events (DMMV/DKDN/...) for privacy: this is a lifecycle audit
// trail, not an input-event replay log.
type Transcript struct {
	dir     string
	pattern *strftime.Strftime

	mu       sync.Mutex
	f        *os.File
	openedAt string
}

// NewTranscript builds a Transcript writing under dir, one file per day
// named by the given strftime pattern (default "session-%Y-%m-%d.log").
func NewTranscript(dir, pattern string) (*Transcript, error) {
	if pattern == "" {
		pattern = "session-%Y-%m-%d.log"
	}

	f, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("consolelog: parsing transcript filename pattern: %w", err)
	}

	return &Transcript{dir: dir, pattern: f}, nil
}

// Record appends one timestamped lifecycle line, rotating to a new daily
// file if the date has changed since the last write.
func (t *Transcript) Record(format string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	name := t.pattern.FormatString(now)

	if name != t.openedAt {
		if t.f != nil {
			t.f.Close() //nolint:errcheck,gosec
		}

		if err := os.MkdirAll(t.dir, 0o700); err != nil {
			return fmt.Errorf("consolelog: creating transcript dir: %w", err)
		}

		f, err := os.OpenFile(filepath.Join(t.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("consolelog: opening transcript file: %w", err)
		}

		t.f = f
		t.openedAt = name
	}

	line := fmt.Sprintf("%s "+format+"\n", append([]any{now.Format(time.RFC3339)}, args...)...)
	if _, err := t.f.WriteString(line); err != nil {
		return fmt.Errorf("consolelog: writing transcript line: %w", err)
	}

	return nil
}

// Close closes the currently-open transcript file, if any.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.f == nil {
		return nil
	}

	if err := t.f.Close(); err != nil {
		return fmt.Errorf("consolelog: closing transcript file: %w", err)
	}

	return nil
}
