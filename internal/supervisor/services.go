// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package supervisor

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// RouterService runs the Watermill router that feeds the processor. A
// router cannot be reused after it closes, so each (re)start builds a
// fresh one from the factory.
//
// Ready is closed once the first router instance is consuming. The bus
// drops events published with no subscriber, so producers must not start
// before this gate opens.
type RouterService struct {
	build func() (*message.Router, error)

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRouterService wraps a router factory as a supervised service.
func NewRouterService(build func() (*message.Router, error)) *RouterService {
	return &RouterService{
		build: build,
		ready: make(chan struct{}),
	}
}

// Ready reports when the router has subscribed to the bus.
func (s *RouterService) Ready() <-chan struct{} { return s.ready }

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	router, err := s.build()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-router.Running():
		s.readyOnce.Do(func() { close(s.ready) })
	}

	return <-done
}

// String implements fmt.Stringer for supervisor logs.
func (s *RouterService) String() string { return "event-router" }
