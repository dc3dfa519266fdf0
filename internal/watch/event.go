package watch

import (
	"cmp"
	"path/filepath"
	"slices"
	"time"

	"p8sync/internal/cart"
)

// Op is a filesystem change, already reduced from the raw notification.
type Op uint8

const (
	OpCreated Op = iota + 1
	OpDeleted
	OpModified
	OpMovedTo
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpDeleted:
		return "deleted"
	case OpModified:
		return "modified"
	case OpMovedTo:
		return "moved-to"
	default:
		return "unknown"
	}
}

// Event is one change to one path.
type Event struct {
	Op    Op
	Path  string
	IsDir bool
}

// ActionKind says what a Handler should do.
type ActionKind uint8

const (
	ActionIgnore ActionKind = iota
	ActionSync
	ActionBootstrap
)

func (k ActionKind) String() string {
	switch k {
	case ActionSync:
		return "sync"
	case ActionBootstrap:
		return "bootstrap"
	default:
		return "ignore"
	}
}

// Action is a unit of work. Path is the companion file for ActionSync and
// the directory for ActionBootstrap.
type Action struct {
	Kind ActionKind
	Path string
}

// Classify maps an event to an action:
//
//	created  *.p8            -> bootstrap its directory
//	deleted  *.lua           -> bootstrap its directory
//	modified/moved-to *.lua  -> sync
//
// Everything else, directories included, is ignored.
func Classify(ev Event) Action {
	if ev.IsDir {
		return Action{}
	}
	switch {
	case ev.Op == OpCreated && cart.IsCart(ev.Path):
		return Action{Kind: ActionBootstrap, Path: filepath.Dir(ev.Path)}
	case ev.Op == OpDeleted && cart.IsCompanion(ev.Path):
		return Action{Kind: ActionBootstrap, Path: filepath.Dir(ev.Path)}
	case (ev.Op == OpModified || ev.Op == OpMovedTo) && cart.IsCompanion(ev.Path):
		return Action{Kind: ActionSync, Path: ev.Path}
	}
	return Action{}
}

// Debouncer collapses repeated actions. An action becomes due once it has
// not been seen again for the whole window.
type Debouncer struct {
	window  time.Duration
	pending map[Action]time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, pending: make(map[Action]time.Time)}
}

// Add records a at time now, pushing back its deadline if it is already pending.
func (d *Debouncer) Add(a Action, now time.Time) {
	d.pending[a] = now.Add(d.window)
}

// Due removes and returns the actions whose deadline is at or before now,
// earliest first.
func (d *Debouncer) Due(now time.Time) []Action {
	type due struct {
		a  Action
		at time.Time
	}
	var ready []due
	for a, at := range d.pending {
		if !at.After(now) {
			ready = append(ready, due{a, at})
		}
	}
	slices.SortFunc(ready, func(x, y due) int {
		if c := x.at.Compare(y.at); c != 0 {
			return c
		}
		if c := cmp.Compare(x.a.Kind, y.a.Kind); c != 0 {
			// bootstrap first, so a fresh companion exists before it is synced
			return -c
		}
		return cmp.Compare(x.a.Path, y.a.Path)
	})
	out := make([]Action, 0, len(ready))
	for _, r := range ready {
		delete(d.pending, r.a)
		out = append(out, r.a)
	}
	return out
}

// Next returns the earliest pending deadline.
func (d *Debouncer) Next() (time.Time, bool) {
	var (
		next time.Time
		ok   bool
	)
	for _, at := range d.pending {
		if !ok || at.Before(next) {
			next, ok = at, true
		}
	}
	return next, ok
}

// Len returns the number of pending actions.
func (d *Debouncer) Len() int { return len(d.pending) }
