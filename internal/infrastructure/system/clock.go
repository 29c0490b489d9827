// Package system holds small infrastructure adapters that wrap process-
// global state (the wall clock, environment) behind narrow interfaces so
// application services stay testable (mirrors the teacher's
// internal/infrastructure/system package).
package system

import "time"

// WallClock is the real-time ports.Clock implementation used outside
// tests.
type WallClock struct{}

// NewWallClock constructs a WallClock.
func NewWallClock() WallClock { return WallClock{} }

// NowMillis returns the current time in milliseconds since epoch.
func (WallClock) NowMillis() int64 { return time.Now().UnixMilli() }
