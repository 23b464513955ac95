// Package liveness derives the "live now" read model from session state.
// Nothing here mutates a session; a stale slot is only hidden until a
// reconcile clears it.
package liveness

import (
	"sort"
	"time"

	"live-relay-be/internal/entity"
)

const DefaultStaleThreshold = 30 * time.Second

// IsLive reports whether the session has a broadcaster that emitted
// activity within staleThreshold. A claimed slot that never touched
// activity counts as live.
func IsLive(session *entity.Session, now time.Time, staleThreshold time.Duration) bool {
	if session.Broadcaster.IsEmpty() {
		return false
	}
	if session.LastBroadcastAt == nil {
		return true
	}
	return now.Sub(*session.LastBroadcastAt) < staleThreshold
}

type Listing struct {
	Official  []*entity.Session
	Community []*entity.Session
}

// Partition keeps the live sessions, splits them by type and orders each
// list by most recent activity first.
func Partition(sessions []*entity.Session, now time.Time, staleThreshold time.Duration) Listing {
	listing := Listing{
		Official:  []*entity.Session{},
		Community: []*entity.Session{},
	}

	for _, s := range sessions {
		if !IsLive(s, now, staleThreshold) {
			continue
		}
		if s.SessionType == entity.SessionTypeOfficial {
			listing.Official = append(listing.Official, s)
		} else {
			listing.Community = append(listing.Community, s)
		}
	}

	byActivity := func(list []*entity.Session) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].LatestActivity().After(list[j].LatestActivity())
		})
	}
	byActivity(listing.Official)
	byActivity(listing.Community)

	return listing
}
