package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogEvent emits a structured JSON log line.
func LogEvent(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// LogAuthFailure records the precise reason a credential was rejected. The
// reason is deliberately kept server-side; clients only ever see a generic
// rejection.
func LogAuthFailure(kind, reason string) {
	LogEvent(map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"level":  "warn",
		"msg":    "credential rejected",
		"kind":   kind,
		"reason": reason,
	})
}
