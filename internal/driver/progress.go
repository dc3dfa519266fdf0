package driver

import "time"

// Stage describes what is happening to a pair.
type Stage string

const (
	// StageCache is the freshness check against the sync cache.
	StageCache Stage = "cache"
	// StageSync covers expand, merge and write.
	StageSync Stage = "sync"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	// StatusSkipped means the cache proved the cartridge up to date.
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Event reports progress for one companion file.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent may be called from several
// goroutines at once.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
