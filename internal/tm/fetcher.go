// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package tm

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/metrics"
	"github.com/marionlk/stagehand/internal/storage"
)

const (
	defaultFetchInterval = 5 * time.Minute

	// maxConcurrentDivisionFetches bounds the parallel match queries so a
	// large tournament does not burst-load the TM server.
	maxConcurrentDivisionFetches = 4
)

// ScheduleAPI is the slice of the REST client the fetcher consumes.
type ScheduleAPI interface {
	Divisions(ctx context.Context) ([]Division, error)
	Matches(ctx context.Context, divisionID int) ([]json.RawMessage, error)
}

var _ ScheduleAPI = (*Client)(nil)

// Fetcher periodically pulls the full match schedule from the TM API and
// replaces the schedule file the match scheduler reads.
type Fetcher struct {
	api      ScheduleAPI
	files    *storage.Store
	interval time.Duration
}

// NewFetcher builds a Fetcher. A non-positive interval falls back to the
// default of five minutes.
func NewFetcher(api ScheduleAPI, files *storage.Store, interval time.Duration) *Fetcher {
	if interval <= 0 {
		interval = defaultFetchInterval
	}
	return &Fetcher{api: api, files: files, interval: interval}
}

// String names the fetcher for the supervision tree.
func (f *Fetcher) String() string { return "schedule-fetcher" }

// scheduleDocument is the write-side shape of the schedule file. Matches
// stay as raw JSON so the file carries exactly what the API returned;
// readers decode the fields they need.
type scheduleDocument struct {
	Divisions []divisionSchedule `json:"divisions"`
}

type divisionSchedule struct {
	ID      int               `json:"id"`
	Name    string            `json:"name"`
	Matches []json.RawMessage `json:"matches"`
}

// Serve fetches the schedule on a fixed interval until ctx is cancelled.
// After a failed cycle the next sleep is doubled so a down upstream is
// probed, not hammered.
func (f *Fetcher) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", f.interval).Msg("schedule fetcher started")

	for {
		delay := f.interval
		if err := f.FetchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Error().Err(err).Msg("schedule fetch failed")
			metrics.RecordScheduleFetchError()
			delay *= 2
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// FetchOnce pulls the division list and every division's matches, then
// replaces the schedule file. A division whose match query fails is
// skipped with a warning; the aggregate is still written so the other
// divisions stay fresh. A failed division query does not fail the cycle,
// only a failed division listing or write does.
func (f *Fetcher) FetchOnce(ctx context.Context) error {
	start := time.Now()

	logging.Info().Msg("fetching divisions")
	divisions, err := f.api.Divisions(ctx)
	if err != nil {
		return fmt.Errorf("fetch divisions: %w", err)
	}

	fetched := make([]divisionSchedule, len(divisions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDivisionFetches)
	for i, division := range divisions {
		g.Go(func() error {
			logging.Info().Int("division", division.ID).Msg("fetching division schedule")
			matches, err := f.api.Matches(gctx, division.ID)
			if err != nil {
				logging.Warn().Int("division", division.ID).Err(err).Msg("no matches for division")
				return nil
			}
			fetched[i] = divisionSchedule{ID: division.ID, Name: division.Name, Matches: matches}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	doc := scheduleDocument{Divisions: []divisionSchedule{}}
	for _, d := range fetched {
		if d.Matches != nil {
			doc.Divisions = append(doc.Divisions, d)
		}
	}

	if err := f.files.Save(storage.ScheduleKey, doc); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}

	metrics.RecordScheduleFetch(time.Since(start), len(doc.Divisions))
	logging.Info().Int("divisions", len(doc.Divisions)).Msg("schedule fetched and saved")
	return nil
}
