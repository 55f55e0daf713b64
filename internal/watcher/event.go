package watcher

const (
	EventCreated EventKind = "created"
	EventChanged EventKind = "changed"
	EventDeleted EventKind = "deleted"
	EventRenamed EventKind = "renamed"
)

type EventKind string
type EventsChannel <-chan Event

type Event struct {
	Kind    EventKind
	Path    string
	OldPath string // renamed only
}

func (e Event) String() string {
	if e.Kind == EventRenamed {
		return string(e.Kind) + " " + e.OldPath + " -> " + e.Path
	}
	return string(e.Kind) + " " + e.Path
}
