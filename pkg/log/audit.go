package log

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Stages of one switch command in the audit trail.
const (
	AuditStageSent      = "Sent"
	AuditStageCompleted = "Completed"
	AuditStageRejected  = "Rejected"
	AuditStageFailed    = "Failed"
)

// AuditLog is one entry of the switch command audit trail.
// c.f., https://pkg.go.dev/k8s.io/apiserver/pkg/apis/audit#Event
type AuditLog struct {
	Kind    string `json:"kind"`
	AuditID string `json:"auditID"`
	RunID   string `json:"runID"`
	Switch  string `json:"switch"`
	Stage   string `json:"stage"`
	Verb    string `json:"verb"`
	Command string `json:"command"`
	Data    any    `json:"data"`
}

type AuditOption func(*AuditLog)

func (op *AuditLog) applyOpts(opts []AuditOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.Kind == "" {
		op.Kind = "SwitchCommand"
	}
	if op.AuditID == "" {
		op.AuditID = uuid.New().String()
	}
}

func WithKind(kind string) AuditOption {
	return func(ev *AuditLog) {
		ev.Kind = kind
	}
}

func WithAuditID(auditID string) AuditOption {
	return func(ev *AuditLog) {
		ev.AuditID = auditID
	}
}

func WithRunID(runID string) AuditOption {
	return func(ev *AuditLog) {
		ev.RunID = runID
	}
}

// WithSwitch sets the switch management address.
func WithSwitch(addr string) AuditOption {
	return func(ev *AuditLog) {
		ev.Switch = addr
	}
}

func WithStage(stage string) AuditOption {
	return func(ev *AuditLog) {
		ev.Stage = stage
	}
}

// WithVerb sets the kind of command (e.g., "disable").
func WithVerb(verb string) AuditOption {
	return func(ev *AuditLog) {
		ev.Verb = verb
	}
}

// WithCommand sets the exact command line sent to the switch.
func WithCommand(command string) AuditOption {
	return func(ev *AuditLog) {
		ev.Command = command
	}
}

func WithData(data any) AuditOption {
	return func(ev *AuditLog) {
		ev.Data = data
	}
}

type AuditLogger interface {
	Log(...AuditOption)
}

func NewNopAuditLogger() AuditLogger {
	return &auditLogger{logger: zap.NewNop()}
}

// NewAuditLogger writes one JSON line per entry to the rotated log file.
// The base options are applied to every entry before its own.
func NewAuditLogger(logFile string, base ...AuditOption) AuditLogger {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    128, // megabytes
		MaxBackups: 5,
		MaxAge:     30,   // days
		Compress:   true, // compress the rotated files
	})
	return newAuditLogger(w, base...)
}

func newAuditLogger(w zapcore.WriteSyncer, base ...AuditOption) *auditLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.LevelKey = ""
	encoderConfig.MessageKey = ""
	encoderConfig.CallerKey = ""
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		w,
		zap.NewAtomicLevelAt(zap.InfoLevel),
	)
	return &auditLogger{logger: zap.New(core), base: base}
}

type auditLogger struct {
	logger *zap.Logger
	base   []AuditOption
}

func (l *auditLogger) Log(opts ...AuditOption) {
	ev := &AuditLog{}
	ev.applyOpts(append(append([]AuditOption{}, l.base...), opts...))

	l.logger.Log(0, "",
		zap.String("kind", ev.Kind),
		zap.String("auditID", ev.AuditID),
		zap.String("runID", ev.RunID),
		zap.String("switch", ev.Switch),
		zap.String("stage", ev.Stage),
		zap.String("verb", ev.Verb),
		zap.String("command", ev.Command),
		zap.Any("data", ev.Data),
	)
}

// CreateAuditLogFilepath returns the audit file next to the log file
// (e.g., "/var/log/portbounce.log" to "/var/log/portbounce.audit").
func CreateAuditLogFilepath(logFile string) string {
	return strings.ReplaceAll(logFile+".audit", ".log", "")
}
