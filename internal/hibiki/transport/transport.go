// Package transport defines the narrow interface the dispatch pipeline uses
// to reach remote compute processes.
//
// A process is addressed by identity; an outbound message carries one
// Action tag naming the handler, one tag per resolved parameter, and an
// optional raw data payload. The correlated response is retrieved by message
// identity. Signing and delivery are the gateway's concern, not ours.
package transport

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// Tag is a single name/value pair attached to an outbound message.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is one outbound request to a remote process.
type Message struct {
	// Process is the identity of the target process.
	Process string `json:"process"`
	// Tags carries the Action tag plus one tag per resolved parameter.
	Tags []Tag `json:"tags"`
	// Data is an optional raw payload.
	Data string `json:"data,omitempty"`
}

// Reply is the correlated response to a Message.
type Reply struct {
	// MessageID is the identity of the message the reply correlates to.
	MessageID string `json:"message_id"`
	// Data is the raw response payload.
	Data string `json:"data"`
	// Tags carries any response tags set by the process.
	Tags []Tag `json:"tags,omitempty"`
}

// Client sends messages to remote processes.
//
// Implementations must be safe for concurrent use. A Send that has been
// issued cannot be aborted at the transport; cancelling ctx abandons the
// await, not the message.
type Client interface {
	// Send pushes a signed message and awaits the correlated result.
	Send(ctx context.Context, msg Message) (*Reply, error)
	// DryRun evaluates the message against current process state without
	// committing it. Used for reads and validation.
	DryRun(ctx context.Context, msg Message) (*Reply, error)
}

// NewMessage builds a Message for the given handler action and resolved
// parameters. Each parameter becomes one tag whose name is the capitalized
// parameter key and whose value is the string form of the parameter value.
// Parameter tags are ordered by key so message construction is
// deterministic.
func NewMessage(process, action string, params map[string]any, data string) Message {
	tags := make([]Tag, 0, len(params)+1)
	tags = append(tags, Tag{Name: "Action", Value: action})

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tags = append(tags, Tag{Name: Capitalize(k), Value: Stringify(params[k])})
	}

	return Message{Process: process, Tags: tags, Data: data}
}

// Tag returns the value of the named tag and whether it is present.
func (m Message) Tag(name string) (string, bool) {
	for _, t := range m.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Capitalize upper-cases the first byte of key, matching the tag-name
// convention of the process registry ("amount" → "Amount").
func Capitalize(key string) string {
	if key == "" {
		return key
	}
	b := key[0]
	if b >= 'a' && b <= 'z' {
		return string(b-'a'+'A') + key[1:]
	}
	return key
}

// Stringify renders a parameter value as a tag value. Floats that carry no
// fractional part are rendered as integers so "100" never becomes "100.000000".
func Stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
