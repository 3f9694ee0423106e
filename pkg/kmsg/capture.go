package kmsg

import (
	"context"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/process"
)

// LevelWarn is the least severe level a capture keeps.
const LevelWarn = 4

// dmesg fallback for hosts where the device is not readable,
// e.g., with kernel.dmesg_restrict=1 for non-root users
var dmesgCommand = []string{"dmesg", "--time-format=iso", "--nopager", "--level=emerg,alert,crit,err,warn"}

type Op struct {
	device   string
	since    time.Time
	maxLevel int
	runner   process.Runner
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	op.maxLevel = LevelWarn
	for _, opt := range opts {
		opt(op)
	}

	if op.device == "" {
		op.device = DefaultDevice
	}
}

// Specifies the kernel log device to read.
func WithDevice(p string) OpOption {
	return func(op *Op) {
		op.device = p
	}
}

// Drops messages logged before the time.
func WithSince(t time.Time) OpOption {
	return func(op *Op) {
		op.since = t
	}
}

// Specifies the least severe syslog level to keep (0 emerg ... 7 debug).
func WithMaxLevel(level int) OpOption {
	return func(op *Op) {
		op.maxLevel = level
	}
}

// Specifies the runner for the dmesg fallback.
// Without one there is no fallback.
func WithRunner(r process.Runner) OpOption {
	return func(op *Op) {
		op.runner = r
	}
}

// Capture returns the warn-or-worse kernel messages, oldest first, with
// duplicates removed. It reads the kernel log device and falls back to
// the dmesg command when the device cannot be read.
func Capture(ctx context.Context, opts ...OpOption) ([]Message, error) {
	op := &Op{}
	op.applyOpts(opts)

	msgs, err := ReadAll(ctx, op.device)
	if err != nil {
		if op.runner == nil {
			return nil, err
		}
		log.Logger.Warnw("failed to read kernel log device, falling back to dmesg", "device", op.device, "error", err)

		out, exitCode, rerr := op.runner.RunUntilCompletion(ctx, dmesgCommand...)
		if rerr != nil {
			log.Logger.Warnw("dmesg failed", "exitCode", exitCode, "error", rerr)
			return nil, rerr
		}
		msgs = ParseDmesgOutput(string(out))
	}

	return filter(msgs, op), nil
}

func filter(msgs []Message, op *Op) []Message {
	d := newDeduper(10*time.Minute, 20*time.Minute)

	kept := make([]Message, 0)
	for _, m := range msgs {
		if m.Level() > op.maxLevel {
			continue
		}
		if !op.since.IsZero() && !m.Timestamp.IsZero() && m.Timestamp.Time.Before(op.since) {
			continue
		}
		if d.addCache(m) > 1 {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// dmesg --time-format=iso, e.g., "2024-03-01T09:30:12,123456+00:00"
const dmesgISOLayout = "2006-01-02T15:04:05,999999-07:00"

// ParseDmesgOutput parses "dmesg --time-format=iso" lines. The command is
// already filtered by level, so every message is reported at warn.
func ParseDmesgOutput(out string) []Message {
	var msgs []Message
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := Message{
			Priority:       LevelWarn,
			SequenceNumber: i,
			Message:        line,
		}
		if ts, rest, ok := strings.Cut(line, " "); ok {
			if t, err := time.Parse(dmesgISOLayout, ts); err == nil {
				m.Timestamp = metav1.NewTime(t)
				m.Message = strings.TrimSpace(rest)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs
}
