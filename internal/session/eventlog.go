package session

import (
	"fmt"
	"strings"
	"sync"
)

// Event categories.
const (
	CatSession = "session"
	CatPlan    = "plan"
	CatMove    = "move"
	CatClaim   = "claim"
	CatEngine  = "engine"
	CatTiming  = "timing"
	CatPacing  = "pacing"
)

// Event is one recorded decision or incident during a session.
type Event struct {
	Tick     int
	Agent    string  // label e.g. "A0", or "--" for session-wide events
	Category string  // session, plan, move, claim, engine, timing, pacing
	Key      string  // specific event name within the category
	Value    string  // human-readable detail
	NumVal   float64 // optional numeric value for threshold checks
}

// String formats the event as a fixed-width log line.
//
//	[T=042] A0   plan      created          target=7 path=[2 3]
func (e Event) String() string {
	return fmt.Sprintf("[T=%03d] %-4s %-9s %-16s %s",
		e.Tick, e.Agent, e.Category, e.Key, e.Value)
}

// EventLog collects structured events during a session. It is unbounded,
// machine-readable and safe for concurrent use, since the decision loop
// and the pacer both write to it.
type EventLog struct {
	mu      sync.RWMutex
	entries []Event
	verbose bool
	tail    []func(Event)
}

// NewEventLog creates an EventLog. If verbose is true, per-move entries are
// also recorded.
func NewEventLog(verbose bool) *EventLog {
	return &EventLog{verbose: verbose}
}

// Subscribe registers fn to be called with each new event. fn runs on the
// writer's goroutine and must not block.
func (l *EventLog) Subscribe(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tail = append(l.tail, fn)
}

// Add records a new entry.
func (l *EventLog) Add(tick int, agent, category, key, value string, numVal float64) {
	e := Event{Tick: tick, Agent: agent, Category: category, Key: key, Value: value, NumVal: numVal}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	subs := l.tail
	l.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// AddVerbose records an entry only when verbose mode is on.
func (l *EventLog) AddVerbose(tick int, agent, category, key, value string, numVal float64) {
	if !l.verbose {
		return
	}
	l.Add(tick, agent, category, key, value, numVal)
}

// Len returns the number of recorded entries.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of all recorded entries.
func (l *EventLog) Entries() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event(nil), l.entries...)
}

// Filter returns entries matching the given category and/or key.
// Pass empty string to match any value for that field.
func (l *EventLog) Filter(category, key string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterAgent returns entries for a specific agent label.
func (l *EventLog) FilterAgent(label string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.entries {
		if e.Agent == label {
			out = append(out, e)
		}
	}
	return out
}

// CountCategory returns how many entries match the given category and key.
func (l *EventLog) CountCategory(category, key string) int {
	return len(l.Filter(category, key))
}

// LastOf returns the most recent entry matching category+key, or false if none.
func (l *EventLog) LastOf(category, key string) (Event, bool) {
	entries := l.Filter(category, key)
	if len(entries) == 0 {
		return Event{}, false
	}
	return entries[len(entries)-1], true
}

// HasEntry returns true if at least one entry matches category, key, and value substring.
func (l *EventLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range l.Filter(category, key) {
		if valueSubstr == "" || strings.Contains(e.Value, valueSubstr) {
			return true
		}
	}
	return false
}

// FirstTick returns the tick of the first entry matching category, key and
// value substring, or -1.
func (l *EventLog) FirstTick(category, key, valueSubstr string) int {
	for _, e := range l.Filter(category, key) {
		if valueSubstr == "" || strings.Contains(e.Value, valueSubstr) {
			return e.Tick
		}
	}
	return -1
}

// Format returns the full log as a single string for t.Log output.
func (l *EventLog) Format() string {
	var sb strings.Builder
	for _, e := range l.Entries() {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatRange returns a log string filtered to a tick range.
func (l *EventLog) FormatRange(fromTick, toTick int) string {
	var sb strings.Builder
	for _, e := range l.Entries() {
		if e.Tick < fromTick || e.Tick > toTick {
			continue
		}
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
