package events

// Document events. Names follow the domain.action format.
const (
	EventTypeDocumentChanged = "document.changed"
	EventTypeDocumentRemoved = "document.removed"
)
