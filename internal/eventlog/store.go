package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventStore provides thread-safe, chronological storage for TicketEvents.
type EventStore struct {
	mu   sync.RWMutex
	logs map[string][]TicketEvent // Partitioned by team
}

// NewEventStore creates a new empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		logs: make(map[string][]TicketEvent),
	}
}

// Append adds new events to the log of a team, ensuring chronological order and deduplication.
func (s *EventStore) Append(team string, events []TicketEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[team]

	existing := make(map[string]bool, len(log))
	for _, e := range log {
		existing[e.identity()] = true
	}

	newCount := 0
	for _, e := range events {
		if !existing[e.identity()] {
			log = append(log, e)
			existing[e.identity()] = true
			newCount++
		}
	}

	if newCount == 0 {
		return
	}

	// Sort by Timestamp and then emission order
	sort.SliceStable(log, func(i, j int) bool {
		if log[i].Timestamp != log[j].Timestamp {
			return log[i].Timestamp < log[j].Timestamp
		}
		return log[i].Seq < log[j].Seq
	})

	s.logs[team] = log
}

// Teams returns the partitions in name order.
func (s *EventStore) Teams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.logs))
	for team := range s.logs {
		out = append(out, team)
	}
	sort.Strings(out)
	return out
}

// Events returns a copy of a team's log.
func (s *EventStore) Events(team string) []TicketEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TicketEvent(nil), s.logs[team]...)
}

// Count returns the number of events in the store for a team.
func (s *EventStore) Count(team string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[team])
}

// Load reads events from a JSONL file.
func (s *EventStore) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	byTeam := make(map[string][]TicketEvent)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e TicketEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping invalid JSON line in event log")
			continue
		}
		byTeam[e.Team] = append(byTeam[e.Team], e)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading event log: %w", err)
	}

	for team, events := range byTeam {
		s.Append(team, events)
	}
	return nil
}

// Save persists every partition, teams in name order, to a JSONL file.
func (s *EventStore) Save(path string) error {
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp event log: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	total := 0
	for _, team := range s.Teams() {
		for _, e := range s.Events(team) {
			if err := encoder.Encode(e); err != nil {
				file.Close()
				os.Remove(tmpPath)
				return fmt.Errorf("failed to encode event: %w", err)
			}
			total++
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename event log: %w", err)
	}

	log.Debug().Str("path", path).Int("count", total).Msg("Event log saved")
	return nil
}

// GetEventsInRange returns a copy of a team's events within the specified time window.
func (s *EventStore) GetEventsInRange(team string, start, end time.Time) []TicketEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startTs := start.UnixMicro()
	endTs := end.UnixMicro()

	var result []TicketEvent
	for _, e := range s.logs[team] {
		if e.Timestamp >= startTs && (end.IsZero() || e.Timestamp <= endTs) {
			result = append(result, e)
		}
	}
	return result
}

// GetEventsForTicket returns the full event history of a single ticket on a team.
func (s *EventStore) GetEventsForTicket(team string, id int64) []TicketEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []TicketEvent
	for _, e := range s.logs[team] {
		if e.TicketID == id {
			result = append(result, e)
		}
	}
	return result
}

// identity computes a unique string identifier for an event to aid deduplication.
func (e TicketEvent) identity() string {
	return fmt.Sprintf("%d|%d|%s|%d|%d",
		e.TicketID,
		e.Timestamp,
		e.EventType,
		e.Related,
		e.Seq,
	)
}
