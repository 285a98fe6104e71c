package logs

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

var (
	mu     sync.Mutex
	logger = log.New(os.Stdout, "", 0)
)

// SetOutput redirects the JSON lines, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

func LogJSON(level, message string, fields map[string]interface{}) {
	logEntry := map[string]interface{}{
		"severity": level, // "DEBUG", "INFO", "WARN", "ERROR" & "FATAL"
		"message":  message,
		"time":     time.Now().Format(time.RFC3339),
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		logEntry[k] = v
	}
	jsonLog, _ := json.Marshal(logEntry)

	mu.Lock()
	l := logger
	mu.Unlock()
	l.Println(string(jsonLog))
}

// Fatal logs at FATAL level and exits.
func Fatal(message string, fields map[string]interface{}) {
	LogJSON(LevelFatal, message, fields)
	os.Exit(1)
}
