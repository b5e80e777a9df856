// Package audit keeps a JSON-lines trail of authentication and agent
// operations, written by a background worker.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType represents the type of audit event
type EventType string

const (
	// Session events
	EventAuth       EventType = "AUTH"
	EventAuthFailed EventType = "AUTH_FAILED"
	EventLogout     EventType = "LOGOUT"
	EventSignup     EventType = "SIGNUP"
	EventOrgCheck   EventType = "ORG_CHECK"

	// Agent events
	EventAgentAccess   EventType = "AGENT_ACCESS"
	EventAgentCreate   EventType = "AGENT_CREATE"
	EventAgentUpdate   EventType = "AGENT_UPDATE"
	EventAgentDelete   EventType = "AGENT_DELETE"
	EventPhoneAssign   EventType = "PHONE_ASSIGN"
	EventPhoneUnassign EventType = "PHONE_UNASSIGN"

	// Organization events
	EventOrgSettings   EventType = "ORG_SETTINGS"
	EventMemberInvite  EventType = "MEMBER_INVITE"
	EventMemberRole    EventType = "MEMBER_ROLE"
	EventChannelUpsert EventType = "CHANNEL_UPSERT"
	EventChannelDelete EventType = "CHANNEL_DELETE"

	// System events
	EventStartup      EventType = "STARTUP"
	EventShutdown     EventType = "SHUTDOWN"
	EventError        EventType = "ERROR"
	EventConfigChange EventType = "CONFIG_CHANGE"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event is a single audit log entry
type Event struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	Type          EventType              `json:"type"`
	Severity      Severity               `json:"severity"`
	Source        string                 `json:"source"`
	User          string                 `json:"user,omitempty"`
	Profile       string                 `json:"profile,omitempty"`
	Resource      string                 `json:"resource,omitempty"`
	Action        string                 `json:"action"`
	Result        string                 `json:"result"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Error         string                 `json:"error,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Logger writes audit events. A nil *Logger discards everything, so callers
// can hold an optional trail without nil checks.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	filepath  string
	maxSize   int64
	maxAge    time.Duration
	encoder   zerolog.Logger
	eventChan chan *Event
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Config represents logger configuration
type Config struct {
	FilePath string
	MaxSize  int64         // Maximum file size in bytes
	MaxAge   time.Duration // Maximum age of rotated files
}

// NewLogger creates a new audit logger
func NewLogger(config Config) (*Logger, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	logger := &Logger{
		file:      file,
		filepath:  config.FilePath,
		maxSize:   config.MaxSize,
		maxAge:    config.MaxAge,
		encoder:   newEncoder(file),
		eventChan: make(chan *Event, 100),
		stopChan:  make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.worker()

	logger.LogSystem(EventStartup, "Audit logger started", nil)

	return logger, nil
}

func newEncoder(w io.Writer) zerolog.Logger {
	return zerolog.New(w)
}

// Path returns the active log file
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.filepath
}

// Log queues an audit event
func (l *Logger) Log(event *Event) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.eventChan <- event:
	case <-time.After(time.Second):
		fmt.Fprintf(os.Stderr, "Failed to log audit event: timeout\n")
	}
}

// LogAuth logs a login, Google sign-in or signup attempt
func (l *Logger) LogAuth(success bool, user, profile string, details map[string]interface{}) {
	eventType := EventAuth
	result := "SUCCESS"
	severity := SeverityInfo

	if !success {
		eventType = EventAuthFailed
		result = "FAILED"
		severity = SeverityWarning
	}

	l.Log(&Event{
		Type:     eventType,
		Severity: severity,
		Source:   "auth",
		User:     user,
		Profile:  profile,
		Action:   "authenticate",
		Result:   result,
		Details:  sanitize(details),
	})
}

// LogSession logs a non-login session event such as logout or signup
func (l *Logger) LogSession(eventType EventType, user, profile string, success bool, details map[string]interface{}) {
	result, severity := outcome(success, SeverityWarning)
	l.Log(&Event{
		Type:     eventType,
		Severity: severity,
		Source:   "auth",
		User:     user,
		Profile:  profile,
		Action:   strings.ToLower(string(eventType)),
		Result:   result,
		Details:  sanitize(details),
	})
}

// LogAgentOperation logs an operation against one agent. agentID 0 means
// the agent does not exist yet.
func (l *Logger) LogAgentOperation(operation EventType, agentID int64, profile string, success bool, details map[string]interface{}) {
	result, severity := outcome(success, SeverityError)

	resource := ""
	if agentID > 0 {
		resource = fmt.Sprintf("agent:%d", agentID)
	}

	l.Log(&Event{
		Type:     operation,
		Severity: severity,
		Source:   "agents",
		Profile:  profile,
		Resource: resource,
		Action:   string(operation),
		Result:   result,
		Details:  sanitize(details),
	})
}

// LogOrgOperation logs a change to organization settings, members or
// channels. resource names the target, e.g. "member:4" or "channel:7".
func (l *Logger) LogOrgOperation(operation EventType, resource, profile string, success bool, details map[string]interface{}) {
	result, severity := outcome(success, SeverityError)

	l.Log(&Event{
		Type:     operation,
		Severity: severity,
		Source:   "organization",
		Profile:  profile,
		Resource: resource,
		Action:   string(operation),
		Result:   result,
		Details:  sanitize(details),
	})
}

// LogError logs an error event
func (l *Logger) LogError(source string, err error, details map[string]interface{}) {
	if err == nil {
		return
	}
	l.Log(&Event{
		Type:     EventError,
		Severity: SeverityError,
		Source:   source,
		Action:   "error",
		Result:   "ERROR",
		Error:    err.Error(),
		Details:  sanitize(details),
	})
}

// LogSystem logs a system event
func (l *Logger) LogSystem(eventType EventType, message string, details map[string]interface{}) {
	l.Log(&Event{
		Type:     eventType,
		Severity: SeverityInfo,
		Source:   "system",
		Action:   string(eventType),
		Result:   message,
		Details:  details,
	})
}

// LogWithCorrelation logs an event with a correlation ID
func (l *Logger) LogWithCorrelation(event *Event, correlationID string) {
	event.CorrelationID = correlationID
	l.Log(event)
}

// worker processes audit events in the background
func (l *Logger) worker() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.eventChan:
			l.writeEvent(event)

		case <-ticker.C:
			l.performMaintenance()

		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		}
	}
}

// writeEvent encodes one event as a JSON line
func (l *Logger) writeEvent(event *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.encoder.Log().
		Str("id", event.ID).
		Str("timestamp", event.Timestamp.Format(time.RFC3339Nano)).
		Str("type", string(event.Type)).
		Str("severity", string(event.Severity)).
		Str("source", event.Source).
		Str("action", event.Action).
		Str("result", event.Result)

	if event.User != "" {
		entry = entry.Str("user", event.User)
	}
	if event.Profile != "" {
		entry = entry.Str("profile", event.Profile)
	}
	if event.Resource != "" {
		entry = entry.Str("resource", event.Resource)
	}
	if len(event.Details) > 0 {
		entry = entry.Interface("details", event.Details)
	}
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}
	if event.CorrelationID != "" {
		entry = entry.Str("correlation_id", event.CorrelationID)
	}
	entry.Send()

	if l.maxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() > l.maxSize {
			l.rotate()
		}
	}
}

// rotate moves the current file aside and reopens a fresh one
func (l *Logger) rotate() {
	_ = l.file.Close()

	timestamp := time.Now().Format("20060102-150405.000000000")
	rotatedPath := fmt.Sprintf("%s.%s", l.filepath, timestamp)
	_ = os.Rename(l.filepath, rotatedPath)

	file, err := os.OpenFile(l.filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open new audit log file: %v\n", err)
		return
	}

	l.file = file
	l.encoder = newEncoder(file)
}

// performMaintenance removes rotated files older than maxAge
func (l *Logger) performMaintenance() {
	if l.maxAge <= 0 {
		return
	}

	dir := filepath.Dir(l.filepath)
	base := filepath.Base(l.filepath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-l.maxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if name == base || !strings.HasPrefix(name, base+".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// Close flushes pending events and closes the file. Safe to call twice.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	var err error
	l.closeOnce.Do(func() {
		l.LogSystem(EventShutdown, "Audit logger shutting down", nil)

		close(l.stopChan)
		l.wg.Wait()

		l.mu.Lock()
		defer l.mu.Unlock()
		err = l.file.Close()
	})
	return err
}

func outcome(success bool, failure Severity) (string, Severity) {
	if success {
		return "SUCCESS", SeverityInfo
	}
	return "FAILED", failure
}

// sanitize drops keys that look like credentials
func sanitize(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	out := make(map[string]interface{}, len(details))
	for k, v := range details {
		if !isSensitiveKey(k) {
			out[k] = v
		}
	}
	return out
}

// isSensitiveKey checks if a key contains sensitive information
func isSensitiveKey(key string) bool {
	sensitiveKeys := []string{
		"password", "secret", "token", "credential",
		"passphrase", "cookie", "authorization",
	}

	keyLower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}

// Query represents an audit log query
type Query struct {
	StartTime     time.Time
	EndTime       time.Time
	EventTypes    []EventType
	Severities    []Severity
	Users         []string
	Resources     []string
	CorrelationID string
	Limit         int
}

// Search scans the active log file for matching events
func (l *Logger) Search(query Query) ([]*Event, error) {
	if l == nil {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}

		if !query.matches(&event) {
			continue
		}

		events = append(events, &event)

		if query.Limit > 0 && len(events) >= query.Limit {
			break
		}
	}

	return events, scanner.Err()
}

func (q Query) matches(event *Event) bool {
	if !q.StartTime.IsZero() && event.Timestamp.Before(q.StartTime) {
		return false
	}
	if !q.EndTime.IsZero() && event.Timestamp.After(q.EndTime) {
		return false
	}
	if len(q.EventTypes) > 0 && !contains(q.EventTypes, event.Type) {
		return false
	}
	if len(q.Severities) > 0 && !contains(q.Severities, event.Severity) {
		return false
	}
	if len(q.Users) > 0 && !contains(q.Users, event.User) {
		return false
	}
	if len(q.Resources) > 0 && !contains(q.Resources, event.Resource) {
		return false
	}
	if q.CorrelationID != "" && event.CorrelationID != q.CorrelationID {
		return false
	}
	return true
}

func contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
