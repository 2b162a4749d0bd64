// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package scheduler watches the fetched match schedule and the live field
// states, and posts an upcoming-match popup to the rooms whose teams play
// in a match that is about to be queued.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/fieldstate"
	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/metrics"
	"github.com/marionlk/stagehand/internal/models"
	"github.com/marionlk/stagehand/internal/storage"
)

// passSpec is how often the schedule is checked. Ten seconds keeps popups
// ahead of the queue without the pass cost mattering.
const passSpec = "@every 10s"

// popupDuration is how long an upcoming-match popup stays on screen.
const popupDuration = 30 // seconds

// Scheduler runs the periodic scheduling pass. The show config is
// re-read on every pass so room roster and pause edits take effect
// without a restart.
type Scheduler struct {
	files  *storage.Store
	fields *fieldstate.Store
}

// New returns a Scheduler reading and writing through files.
func New(files *storage.Store, fields *fieldstate.Store) *Scheduler {
	return &Scheduler{files: files, fields: fields}
}

// String names the scheduler for the supervision tree.
func (s *Scheduler) String() string { return "match-scheduler" }

// Serve runs scheduling passes until ctx is cancelled. Passes are
// serialized; a pass still running when the next tick arrives makes the
// tick a no-op rather than a pile-up.
func (s *Scheduler) Serve(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(passSpec, s.runPass); err != nil {
		return fmt.Errorf("register scheduling pass: %w", err)
	}

	c.Start()
	logging.Info().Str("interval", passSpec).Msg("match scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) runPass() {
	if err := s.CheckSchedule(); err != nil {
		logging.Error().Err(err).Msg("match scheduler pass failed")
	}
}

// CheckSchedule performs one scheduling pass: for every division, find
// the highest match number currently on a field, and notify the rooms of
// every not-yet-notified match within the configured lead window above
// it. A match reaches at most one notification, tracked across restarts
// in the notified-matches file.
func (s *Scheduler) CheckSchedule() error {
	show := config.LoadShow(s.files)

	if show.MatchQueuePause.Active() {
		logging.Info().Msg("match scheduling is paused")
		metrics.RecordSchedulerPass(true)
		return nil
	}

	var schedule models.Schedule
	found, err := s.files.Load(storage.ScheduleKey, &schedule)
	if err != nil || !found {
		logging.Warn().Err(err).Msg("schedule missing or invalid, skipping pass")
		metrics.RecordSchedulerPass(true)
		return nil
	}

	lastPlayed := s.lastPlayedByDivision()
	notified := s.loadNotified()
	var added []models.Popup

	for _, division := range schedule.Divisions {
		last := lastPlayed[division.ID]

		for _, match := range division.Matches {
			num := match.Number()
			if num == 0 {
				continue
			}
			if num <= last || num > last+show.ScheduleLeadMatches {
				continue
			}
			key := fmt.Sprintf("%d-%d", division.ID, num)
			if notified[key] {
				continue
			}

			teams := match.TeamNumbers()
			logging.Info().Int("division", division.ID).Int("match", num).
				Strs("teams", teams).Msg("upcoming match")

			rooms := roomsForTeams(show.Rooms, teams)
			if len(rooms) == 0 {
				continue
			}

			added = append(added, models.Popup{
				ID:       uuid.New().String(),
				RoomIDs:  rooms,
				Title:    fmt.Sprintf("Upcoming Match: %d", num),
				Message:  "Teams: " + strings.Join(teams, ", "),
				Duration: popupDuration,
				Type:     models.PopupTypeToast,
				Source:   models.PopupSourceScheduler,
			})
			notified[key] = true
		}
	}

	if len(added) == 0 {
		metrics.RecordSchedulerPass(false)
		return nil
	}

	if err := s.appendPopups(added); err != nil {
		return fmt.Errorf("append popups: %w", err)
	}
	if err := s.saveNotified(notified); err != nil {
		return fmt.Errorf("save notified matches: %w", err)
	}

	for range added {
		metrics.RecordMatchNotification()
	}
	metrics.RecordSchedulerPass(false)
	return nil
}

// lastPlayedByDivision finds the highest match number on any field that
// is queued, active or finishing, per division. Standby fields carry no
// current match and do not count.
func (s *Scheduler) lastPlayedByDivision() map[int]int {
	last := map[int]int{}
	for _, state := range s.fields.States() {
		switch state.State {
		case fieldstate.StateActive, fieldstate.StateQueued, fieldstate.StateFinish:
		default:
			continue
		}
		if state.MatchRef == nil {
			continue
		}
		if state.MatchRef.Match > last[state.MatchRef.Division] {
			last[state.MatchRef.Division] = state.MatchRef.Match
		}
	}
	return last
}

// loadNotified reads the notified-matches file into a set. Missing or
// unreadable starts empty, which at worst re-notifies a match.
func (s *Scheduler) loadNotified() map[string]bool {
	var keys []string
	if _, err := s.files.Load(storage.NotifiedKey, &keys); err != nil {
		logging.Warn().Err(err).Msg("notified matches unreadable, starting empty")
	}
	notified := make(map[string]bool, len(keys))
	for _, key := range keys {
		notified[key] = true
	}
	return notified
}

func (s *Scheduler) saveNotified(notified map[string]bool) error {
	keys := make([]string, 0, len(notified))
	for key := range notified {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return s.files.Save(storage.NotifiedKey, keys)
}

// appendPopups adds the new popups to the popups file without disturbing
// entries other writers put there; existing entries pass through as raw
// JSON.
func (s *Scheduler) appendPopups(added []models.Popup) error {
	var popups []json.RawMessage
	err := s.files.Update(storage.PopupsKey, &popups, func(loaded bool) error {
		if !loaded {
			popups = []json.RawMessage{}
		}
		for _, popup := range added {
			raw, err := json.Marshal(popup)
			if err != nil {
				return fmt.Errorf("marshal popup %s: %w", popup.ID, err)
			}
			popups = append(popups, raw)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.SetPopupsActive(len(popups))
	return nil
}

// roomsForTeams returns the ids of every room whose roster seats one of
// the teams, sorted so popup routing is deterministic.
func roomsForTeams(rooms map[string]config.Room, teams []string) []string {
	var ids []string
	for id, room := range rooms {
		if roomSeatsAny(room, teams) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func roomSeatsAny(room config.Room, teams []string) bool {
	for _, team := range teams {
		for _, seated := range room.Teams {
			if team == seated {
				return true
			}
		}
	}
	return false
}

// cronLogger adapts the cron logger onto the structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logging.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
