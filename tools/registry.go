// Package tools holds the static tool registry and the HTTP invoker that
// performs one request/response exchange with a tool endpoint.
package tools

import (
	"strings"

	"github.com/effective-security/toolchat/chatmodel"
)

// Descriptor describes one invocable tool: the logical name the model uses,
// the endpoint the invoker posts to, and a one-line description included
// verbatim in the system prompt.
type Descriptor struct {
	Name        string `json:"name" yaml:"name"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Description string `json:"description" yaml:"description"`
}

// Registry is the fixed name-to-descriptor mapping. It is populated once at
// startup and read-only thereafter, so lookups need no locking.
type Registry struct {
	byName map[string]Descriptor
	names  []string
}

// NewRegistry builds a registry from descriptors. Names are matched
// case-insensitively; on duplicates the first registration wins.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{
		byName: make(map[string]Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		key := strings.ToLower(d.Name)
		if _, ok := r.byName[key]; ok {
			continue
		}
		r.byName[key] = d
		r.names = append(r.names, d.Name)
	}
	return r
}

// Lookup returns the descriptor for a logical tool name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[strings.ToLower(name)]
	return d, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.byName)
}

type promptTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PromptBlock renders the tool names and descriptions as a fenced JSON block
// for the system prompt, so the model knows what is callable.
func (r *Registry) PromptBlock() string {
	list := make([]promptTool, 0, len(r.names))
	for _, name := range r.names {
		d := r.byName[strings.ToLower(name)]
		list = append(list, promptTool{Name: d.Name, Description: d.Description})
	}
	return "\n```json\n" + chatmodel.ToJSON(list) + "\n```\n"
}
