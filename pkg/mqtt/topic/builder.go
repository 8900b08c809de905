package topic

import (
	"fmt"
	"strings"
)

// Topic segments shared by the KDS server and any broker-side consumer.
// Changing these values breaks existing subscribers.
const (
	// SegmentEvents carries order lifecycle events (server -> subscribers).
	// Structure: {root}/events/{event}
	SegmentEvents = "events"

	// SegmentCommands carries station commands (clients -> server).
	// Structure: {root}/commands/{command}
	SegmentCommands = "commands"

	// SegmentStatus carries the retained online/offline marker of the server.
	// Structure: {root}/status
	SegmentStatus = "status"
)

// Wildcard is the single-level MQTT filter wildcard.
const Wildcard = "+"

// TopicBuilder constructs MQTT topic strings under one root namespace.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "kds/v1", "grill/prod").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.TrimSuffix(root, "/")}
}

// Event returns the topic on which the given event name is published.
func (b *TopicBuilder) Event(event string) string {
	return b.build(SegmentEvents, event)
}

// Command returns the topic on which the given command is accepted.
func (b *TopicBuilder) Command(command string) string {
	return b.build(SegmentCommands, command)
}

// CommandWildcard returns {root}/commands/+.
func (b *TopicBuilder) CommandWildcard() string {
	return b.build(SegmentCommands, Wildcard)
}

// Status returns {root}/status.
func (b *TopicBuilder) Status() string {
	return b.root + "/" + SegmentStatus
}

// CommandName extracts the command name from a concrete command topic.
// ok is false when topic is not under {root}/commands/.
func (b *TopicBuilder) CommandName(topic string) (name string, ok bool) {
	prefix := b.root + "/" + SegmentCommands + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	name = strings.TrimPrefix(topic, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// build is a private helper to construct the final topic string.
// Pattern: {root}/{segment}/{identifier}
func (b *TopicBuilder) build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}
