package logger

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

var (
	mu   sync.RWMutex
	base = newBase(os.Getenv("LOG_LEVEL"), os.Getenv("ENVIRONMENT"))
)

func newBase(level, env string) *logrus.Logger {
	l := logrus.New()

	// Local env = pretty console; others = JSON
	if env == "" || env == "local" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	l.SetOutput(os.Stdout)
	l.SetLevel(parseLevel(level))
	return l
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Init reconfigures the shared logger. format is "json", "text" or "" to
// derive it from ENVIRONMENT.
func Init(level, format string) {
	env := os.Getenv("ENVIRONMENT")
	switch format {
	case "json":
		env = "production"
	case "text":
		env = "local"
	}
	l := newBase(level, env)
	mu.Lock()
	base = l
	mu.Unlock()
}

func New() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{Entry: logrus.NewEntry(base)}
}

// Component returns an entry tagged with the given component name.
func Component(name string) *Logger {
	return &Logger{Entry: New().WithField("component", name)}
}

// With returns a copy carrying an extra field.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
