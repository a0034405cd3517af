package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vowmud/internal/game/session"
)

// saveTimeout bounds one SaveAll pass.
const saveTimeout = 30 * time.Second

// Saver periodically writes every online character's location to storage.
// Each write reads the character's room at that moment, under the same
// per-character lock as the logout save, so a pass never overwrites a newer
// location.
//
// Invariant: at most one SaveAll pass runs at a time from the save loop.
type Saver struct {
	sessions *session.Manager
	store    session.LocationStore
	interval time.Duration
	logger   *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSaver returns a Saver that runs every interval.
//
// Precondition: interval must be > 0; sessions, store, and logger must be non-nil.
func NewSaver(sessions *session.Manager, store session.LocationStore, interval time.Duration, logger *zap.Logger) *Saver {
	if interval <= 0 {
		panic("gameserver.NewSaver: interval must be > 0")
	}
	return &Saver{
		sessions: sessions,
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the save loop until Stop is called, then makes a final pass.
func (s *Saver) Start() error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			s.runPass("final")
			return nil
		case <-ticker.C:
			s.runPass("periodic")
		}
	}
}

// Stop ends the save loop and waits for the final pass.
func (s *Saver) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Saver) runPass(kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	start := time.Now()
	saved, err := s.SaveAll(ctx)
	if err != nil {
		s.logger.Error("saving locations",
			zap.String("pass", kind),
			zap.Int("saved", saved),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("locations saved",
		zap.String("pass", kind),
		zap.Int("saved", saved),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// SaveAll persists the current room of every online character. Characters
// that leave during the pass are skipped.
//
// Postcondition: Returns the number saved and every failure joined.
func (s *Saver) SaveAll(ctx context.Context) (int, error) {
	var (
		saved int
		errs  []error
	)
	for _, loc := range s.sessions.Locations() {
		ok, err := s.sessions.SaveCurrentLocation(ctx, s.store, loc.CharacterID)
		if err != nil {
			errs = append(errs, fmt.Errorf("character %d (%s): %w", loc.CharacterID, loc.CharName, err))
			continue
		}
		if ok {
			saved++
		}
	}
	return saved, errors.Join(errs...)
}
