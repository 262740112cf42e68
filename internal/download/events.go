package download

import "time"

// Event messages published to subscribers. Delivery is best-effort: a
// subscriber that falls behind drops messages rather than blocking the
// manager.

// ItemAddedMsg announces a newly enqueued item.
type ItemAddedMsg struct {
	Item Snapshot
}

// ItemStateMsg announces a status transition.
type ItemStateMsg struct {
	Item Snapshot
}

// ItemProgressMsg carries coalesced transfer progress for one item.
type ItemProgressMsg struct {
	ID        string
	Received  int64
	Total     int64
	Rate      float64 // bytes per second, valid when RateKnown
	RateKnown bool
	ETA       time.Duration // valid when ETAKnown
	ETAKnown  bool
}

// ItemRemovedMsg announces that an item left the queue entirely.
type ItemRemovedMsg struct {
	ID string
}

// AllCompleteMsg fires when every item in the queue reached a terminal state.
type AllCompleteMsg struct{}
