// Package logger provides a levelled logger with secret masking on top of zap.
package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents logging levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a structured logger with secret masking
type Logger struct {
	base      *zap.Logger
	level     zap.AtomicLevel
	sink      *switchSink
	prefix    string
	fields    map[string]interface{}
	mu        *sync.Mutex
	maskFuncs *[]MaskFunc
}

// MaskFunc is a function that masks sensitive data
type MaskFunc func(string) string

// Default secret patterns to mask
var defaultSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(squ_[a-f0-9]{40})`),                                                           // User token
	regexp.MustCompile(`(sqp_[a-f0-9]{40})`),                                                           // Project token
	regexp.MustCompile(`(sqa_[a-f0-9]{40})`),                                                           // Global analysis token
	regexp.MustCompile(`(?i)(ghp_[a-zA-Z0-9]{36})`),                                                    // GitHub PAT
	regexp.MustCompile(`(?i)(github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59})`),                             // GitHub Fine-grained
	regexp.MustCompile(`(?i)(Basic\s+[a-zA-Z0-9+/=]{8,})`),                                             // Basic auth header
	regexp.MustCompile(`(?i)(Bearer\s+[a-zA-Z0-9._-]+)`),                                               // Bearer tokens
	regexp.MustCompile(`(?i)(api[_-]?key[=:]\s*["']?[a-zA-Z0-9_-]{16,}["']?)`),                         // Generic API key
	regexp.MustCompile(`(?i)(secret[=:]\s*["']?[a-zA-Z0-9_-]{16,}["']?)`),                              // Generic secret
	regexp.MustCompile(`(?i)(password[=:]\s*["']?[^\s"']{8,}["']?)`),                                   // Passwords
	regexp.MustCompile(`(?i)(token[=:]\s*["']?[a-zA-Z0-9._-]{20,}["']?)`),                              // Generic tokens
	regexp.MustCompile(`-----BEGIN [A-Z ]+ PRIVATE KEY-----[\s\S]*?-----END [A-Z ]+ PRIVATE KEY-----`), // Private keys
}

// Sensitive field names that should be masked in structured logging
var sensitiveFieldNames = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"private_key":   true,
	"privatekey":    true,
	"access_token":  true,
	"accesstoken":   true,
	"auth":          true,
	"authorization": true,
	"credential":    true,
	"credentials":   true,
}

var defaultLogger *Logger
var once sync.Once

// Default returns the default logger. It writes to stderr so command output
// on stdout stays parseable.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(LevelInfo, os.Stderr)
	})
	return defaultLogger
}

// New creates a new logger writing console-encoded lines to output.
func New(level Level, output io.Writer) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	sink := &switchSink{w: output}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(sink), atom)
	return newLogger(zap.New(core), atom, sink)
}

// NewWithCore wraps an existing zap core, e.g. an observer in tests.
func NewWithCore(core zapcore.Core, level Level) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	return newLogger(zap.New(core), atom, nil)
}

func newLogger(base *zap.Logger, atom zap.AtomicLevel, sink *switchSink) *Logger {
	l := &Logger{
		base:      base,
		level:     atom,
		sink:      sink,
		fields:    make(map[string]interface{}),
		mu:        &sync.Mutex{},
		maskFuncs: &[]MaskFunc{},
	}
	*l.maskFuncs = append(*l.maskFuncs, maskPatterns)
	return l
}

// Zap returns the underlying zap logger with the current fields attached.
func (l *Logger) Zap() *zap.Logger {
	return l.base.With(l.zapFields()...)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	if l.sink != nil {
		l.sink.set(w)
	}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// WithField returns a new logger with the field added
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with the fields added
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	child := *l
	child.fields = newFields
	return &child
}

// WithPrefix returns a new logger with the prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	child := *l
	child.prefix = prefix
	return &child
}

// AddMaskFunc adds a custom masking function
func (l *Logger) AddMaskFunc(fn MaskFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.maskFuncs = append(*l.maskFuncs, fn)
}

// maskPatterns masks known secret patterns
func maskPatterns(s string) string {
	result := s
	for _, pattern := range defaultSecretPatterns {
		result = pattern.ReplaceAllStringFunc(result, maskString)
	}
	return result
}

// maskString masks a string showing only first and last 4 chars
func maskString(s string) string {
	if len(s) <= 8 {
		return "***MASKED***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

// mask applies all mask functions to a string
func (l *Logger) mask(s string) string {
	l.mu.Lock()
	fns := *l.maskFuncs
	l.mu.Unlock()

	for _, fn := range fns {
		s = fn(s)
	}
	return s
}

// maskValue masks a value if it's a string and the key is sensitive
func (l *Logger) maskValue(key string, value interface{}) interface{} {
	if IsSensitiveKey(key) {
		if str, ok := value.(string); ok {
			return maskString(str)
		}
		return "***MASKED***"
	}
	if str, ok := value.(string); ok {
		return l.mask(str)
	}
	return value
}

// zapFields converts the fields to masked zap fields in key order
func (l *Logger) zapFields() []zap.Field {
	if len(l.fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, l.maskValue(k, l.fields[k])))
	}
	return out
}

// log logs a message at the given level
func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if !l.level.Enabled(level.zapLevel()) {
		return
	}

	formattedMsg := msg
	if len(args) > 0 {
		formattedMsg = fmt.Sprintf(msg, args...)
	}

	formattedMsg = l.mask(formattedMsg)
	if l.prefix != "" {
		formattedMsg = "[" + l.prefix + "] " + formattedMsg
	}

	if ce := l.base.Check(level.zapLevel(), formattedMsg); ce != nil {
		ce.Write(l.zapFields()...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// Package-level functions using default logger

// Debug logs a debug message using the default logger
func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}

// Info logs an info message using the default logger
func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

// Warn logs a warning message using the default logger
func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

// Error logs an error message using the default logger
func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// SetLevel sets the level of the default logger
func SetLevel(level Level) {
	Default().SetLevel(level)
}

// SetOutput sets the output of the default logger
func SetOutput(w io.Writer) {
	Default().SetOutput(w)
}

// WithField returns a new logger with the field added
func WithField(key string, value interface{}) *Logger {
	return Default().WithField(key, value)
}

// WithFields returns a new logger with the fields added
func WithFields(fields map[string]interface{}) *Logger {
	return Default().WithFields(fields)
}

// MaskSecrets masks all known secret patterns in a string
func MaskSecrets(s string) string {
	return Default().mask(s)
}

// IsSensitiveKey checks if a key name is sensitive
func IsSensitiveKey(key string) bool {
	return sensitiveFieldNames[strings.ToLower(key)]
}

// switchSink lets SetOutput redirect a core that is already built.
type switchSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchSink) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
