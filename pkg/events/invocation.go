package events

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Arguments is the ordered argument map of a tool invocation.
type Arguments = orderedmap.OrderedMap[string, any]

// NewArguments returns an empty argument map.
func NewArguments() *Arguments {
	return orderedmap.New[string, any]()
}

// ToolInvocation is a request to run a named tool.
type ToolInvocation struct {
	Name      string     `json:"name"`
	Arguments *Arguments `json:"arguments"`
	ID        string     `json:"id"`
}

// NewToolInvocation builds an invocation, generating an id when id is empty.
// A nil args map is replaced by an empty one.
func NewToolInvocation(name string, args *Arguments, id string) *ToolInvocation {
	if args == nil {
		args = NewArguments()
	}
	if id == "" {
		id = NewInvocationID()
	}
	return &ToolInvocation{Name: name, Arguments: args, ID: id}
}

// NewInvocationID returns a fresh invocation id of the form call_<nanoid>.
func NewInvocationID() string {
	id, _ := gonanoid.New()
	return "call_" + id
}

// Arg returns the argument value stored under key.
func (t *ToolInvocation) Arg(key string) (any, bool) {
	if t == nil || t.Arguments == nil {
		return nil, false
	}
	return t.Arguments.Get(key)
}

// ArgString returns the argument under key formatted as a string.
func (t *ToolInvocation) ArgString(key string) string {
	v, ok := t.Arg(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ArgumentsMap copies the arguments into a plain map.
func (t *ToolInvocation) ArgumentsMap() map[string]any {
	out := make(map[string]any)
	if t == nil || t.Arguments == nil {
		return out
	}
	for pair := t.Arguments.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// ArgumentsFromMap builds ordered arguments from keys in the given order.
// Keys not present in m are skipped; remaining keys of m are appended in map order.
func ArgumentsFromMap(m map[string]any, order ...string) *Arguments {
	args := NewArguments()
	for _, k := range order {
		if v, ok := m[k]; ok {
			args.Set(k, v)
		}
	}
	for k, v := range m {
		if _, ok := args.Get(k); !ok {
			args.Set(k, v)
		}
	}
	return args
}
