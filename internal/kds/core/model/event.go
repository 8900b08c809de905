package model

// EventType names an outbound lifecycle event.
type EventType string

const (
	EventNewOrder        EventType = "new_order"
	EventOrderUpdated    EventType = "order_updated"
	EventOrderRemoved    EventType = "order_removed"
	EventCommandRejected EventType = "command_rejected"
)

// Event is one outbound message. Data is *Order, *OrderRemoved or *CommandRejected.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

// OrderRemoved is the payload of order_removed.
type OrderRemoved struct {
	ID string `json:"id"`
}

// CommandRejected is sent only to the station whose command failed.
type CommandRejected struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func NewOrderEvent(o *Order) *Event {
	return &Event{Type: EventNewOrder, Data: o}
}

func OrderUpdatedEvent(o *Order) *Event {
	return &Event{Type: EventOrderUpdated, Data: o}
}

func OrderRemovedEvent(id string) *Event {
	return &Event{Type: EventOrderRemoved, Data: &OrderRemoved{ID: id}}
}
