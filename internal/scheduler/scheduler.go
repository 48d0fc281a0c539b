// Package scheduler runs agent commands on cron schedules. Entries added
// with Add are persisted to a JSON file; jobs added with AddJob are not.
package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"hue-toys/internal/core"
)

// ScheduleEntry defines the structure for a saved schedule.
type ScheduleEntry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler manages all cron-related tasks.
type Scheduler struct {
	cron           *cron.Cron
	logger         cron.Logger
	store          map[cron.EntryID]ScheduleEntry
	commandChannel core.CommandChannel
	mu             sync.RWMutex
	schedulesFile  string
}

// NewScheduler creates a scheduler and loads the entries saved in
// schedulesFile. An empty schedulesFile disables persistence.
func NewScheduler(cmdChan core.CommandChannel, schedulesFile string) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	s := &Scheduler{
		cron:           cron.New(cron.WithChain(cron.Recover(logger))),
		logger:         logger,
		store:          make(map[cron.EntryID]ScheduleEntry),
		commandChannel: cmdChan,
		schedulesFile:  schedulesFile,
	}
	s.load()
	return s
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Cron scheduler started.")
}

// Stop halts the cron job ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Cron scheduler stopped.")
}

// Add validates and persists a new scheduled command.
func (s *Scheduler) Add(spec, command string) (cron.EntryID, error) {
	if _, err := ParseCommand(command); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, spec, err)
	}
	s.store[id] = ScheduleEntry{Spec: spec, Command: command}
	if err := s.save(); err != nil {
		s.cron.Remove(id)
		delete(s.store, id)
		return 0, err
	}
	log.WithFields(log.Fields{"id": id, "spec": spec, "command": command}).Info("[Scheduler] Added schedule")
	return id, nil
}

// AddJob runs job on spec until the scheduler stops. A run that is still
// going when the next one is due causes that one to be skipped.
func (s *Scheduler) AddJob(spec string, job func()) (cron.EntryID, error) {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(s.logger)).Then(cron.FuncJob(job))
	id, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, spec, err)
	}
	return id, nil
}

// Remove deletes a persisted schedule.
func (s *Scheduler) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	if _, ok := s.store[entryID]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	log.WithField("id", id).Info("[Scheduler] Removed schedule")
	return s.save()
}

// GetAll returns a copy of the current schedules in a thread-safe way.
func (s *Scheduler) GetAll() map[cron.EntryID]ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	newMap := make(map[cron.EntryID]ScheduleEntry, len(s.store))
	for k, v := range s.store {
		newMap[k] = v
	}
	return newMap
}

func (s *Scheduler) execute(command string) {
	cmd, err := ParseCommand(command)
	if err != nil {
		log.WithError(err).Warnf("[Scheduler] Skipping scheduled command %q", command)
		return
	}
	log.Printf("[Scheduler] Executing scheduled command: %s", command)
	s.commandChannel <- cmd
}

func (s *Scheduler) save() error {
	if s.schedulesFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schedules: %w", err)
	}
	if err := os.WriteFile(s.schedulesFile, data, 0644); err != nil {
		return fmt.Errorf("write schedules: %w", err)
	}
	return nil
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedulesFile == "" {
		return
	}
	data, err := os.ReadFile(s.schedulesFile)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("[Scheduler] Error reading schedule file: %v", err)
		return
	}

	tempStore := make(map[cron.EntryID]ScheduleEntry)
	if err := json.Unmarshal(data, &tempStore); err != nil {
		log.Printf("[Scheduler] Error unmarshalling schedule file: %v", err)
		return
	}

	log.Printf("[Scheduler] Loading %d schedules from file '%s'...", len(tempStore), s.schedulesFile)
	for _, entry := range tempStore {
		jobEntry := entry
		if _, err := ParseCommand(jobEntry.Command); err != nil {
			log.WithError(err).Warn("[Scheduler] Dropping saved schedule")
			continue
		}
		newID, err := s.cron.AddFunc(jobEntry.Spec, func() { s.execute(jobEntry.Command) })
		if err != nil {
			log.Printf("[Scheduler] Error re-adding schedule from file: %v", err)
			continue
		}
		s.store[newID] = jobEntry
	}
}
