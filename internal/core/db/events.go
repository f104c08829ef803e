package db

// ------------------------------
// Event System
// ------------------------------
//
// The DB emits typed events when sites are created, updated, deleted, or when
// refreshed content is saved. Register listeners to react to these changes.
//
// Example usage:
//
//	db.RegisterEventListener(db.OnSiteCreatedEvent, func(event db.Event) error {
//	    ev := event.(db.SiteCreatedEvent)
//	    log.Printf("New site created: %s - %s", ev.Site.ID, ev.Site.URL)
//	    return nil
//	})
//
// Listeners must be registered before the DB is shared between goroutines.
//
// Event is the common interface for all database events.
type Event interface {
	Kind() EventKind
}

// EventKind represents all the kinds of events that can be emitted by the DB.
type EventKind int

const (
	// OnSiteCreatedEvent is emitted when a site is created.
	OnSiteCreatedEvent EventKind = iota
	// OnSiteDeletedEvent is emitted when a site is deleted.
	OnSiteDeletedEvent
	// OnSiteUpdatedEvent is emitted when a site's name or URL changes.
	OnSiteUpdatedEvent
	// OnSiteContentSavedEvent is emitted when refreshed content is saved.
	OnSiteContentSavedEvent
)

func (k EventKind) String() string {
	switch k {
	case OnSiteCreatedEvent:
		return "site_created"
	case OnSiteDeletedEvent:
		return "site_deleted"
	case OnSiteUpdatedEvent:
		return "site_updated"
	case OnSiteContentSavedEvent:
		return "site_content_saved"
	default:
		return "unknown"
	}
}

// SiteCreatedEvent is emitted after a new site is successfully inserted.
type SiteCreatedEvent struct {
	Site Site
}

func (e SiteCreatedEvent) Kind() EventKind { return OnSiteCreatedEvent }

// SiteUpdatedEvent is emitted after a site's name or URL is updated.
type SiteUpdatedEvent struct {
	Site Site
}

func (e SiteUpdatedEvent) Kind() EventKind { return OnSiteUpdatedEvent }

// SiteDeletedEvent is emitted after a site is deleted.
// The Site field contains the state before deletion (if available).
type SiteDeletedEvent struct {
	Site Site
}

func (e SiteDeletedEvent) Kind() EventKind { return OnSiteDeletedEvent }

// SiteContentSavedEvent is emitted after refreshed content is saved.
type SiteContentSavedEvent struct {
	SiteID  string
	Updated string
}

func (e SiteContentSavedEvent) Kind() EventKind { return OnSiteContentSavedEvent }

// EventListener is a callback that handles events of a specific kind.
type EventListener func(event Event) error

// RegisterEventListener adds a listener for a specific event kind.
// Listeners are called synchronously in registration order after the DB operation succeeds.
func (db *DB) RegisterEventListener(eventKind EventKind, listener EventListener) {
	if db.eventListeners == nil {
		db.eventListeners = make(map[EventKind][]EventListener)
	}
	db.eventListeners[eventKind] = append(db.eventListeners[eventKind], listener)
}

// emit dispatches an event to all registered listeners for that event kind.
func (db *DB) emit(event Event) {
	for _, listener := range db.eventListeners[event.Kind()] {
		if err := listener(event); err != nil {
			db.log.Error("event listener error", "event", event.Kind().String(), "error", err)
		}
	}
}
