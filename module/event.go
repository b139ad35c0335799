package module

// Event represents an application event emitted during transaction
// execution or block processing. Events are used for indexing and external
// monitoring.
type Event struct {
	// Type is the event type identifier (e.g., "transfer", "mint").
	Type string

	// Attributes are the key-value pairs associated with this event.
	Attributes []Attribute
}

// NewEvent creates a new event with the given type.
func NewEvent(eventType string) Event {
	return Event{Type: eventType}
}

// AddAttribute adds an attribute to the event and returns the event for chaining.
func (e Event) AddAttribute(key string, value []byte) Event {
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
	return e
}

// AddStringAttribute adds a string attribute to the event.
func (e Event) AddStringAttribute(key, value string) Event {
	return e.AddAttribute(key, []byte(value))
}

// Attribute represents a key-value pair within an event.
type Attribute struct {
	// Key is the attribute name.
	Key string

	// Value is the attribute value.
	Value []byte
}

// StringValue returns the attribute value as a string.
func (a Attribute) StringValue() string {
	return string(a.Value)
}

// Common event types emitted by the application.
const (
	EventBeginBlock = "BeginBlock"
	EventDeliverTx  = "DeliverTx"
	EventCommit     = "Commit"
)

// Common attribute keys used in events.
const (
	AttributeKeyModule = "module"
	AttributeKeyHeight = "height"
	AttributeKeyHash   = "hash"
	AttributeKeyKey    = "key"
)
