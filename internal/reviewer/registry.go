package reviewer

import "sort"

// UnknownReviewer is the identity assigned to authors no adapter claims.
const UnknownReviewer = "unknown"

// registration pairs an adapter with an explicit priority. Identification is
// substring-based, so order is a correctness-relevant tie-break: more
// specific adapters must be consulted first. Priority is explicit rather
// than positional so a reordered literal cannot silently change matching.
type registration struct {
	priority int
	adapter  Adapter
}

var registrations = []registration{
	{priority: 10, adapter: Unblocked{}},
	{priority: 20, adapter: Devin{}},
	{priority: 30, adapter: CodeRabbit{}},
}

// registry is the priority-ordered adapter list, built once at init.
var registry []Adapter

func init() {
	sort.SliceStable(registrations, func(i, j int) bool {
		return registrations[i].priority < registrations[j].priority
	})
	registry = make([]Adapter, len(registrations))
	for i, r := range registrations {
		registry[i] = r.adapter
	}
}

// Registry returns all known adapters in priority order.
func Registry() []Adapter {
	out := make([]Adapter, len(registry))
	copy(out, registry)
	return out
}

// Identify returns the name of the first adapter claiming the author, or
// UnknownReviewer. An empty author (ghost/deleted account) is unknown.
func Identify(author string) string {
	for _, a := range registry {
		if a.Identify(author) {
			return a.Name()
		}
	}
	return UnknownReviewer
}

// Get returns the adapter registered under the given name.
func Get(name string) (Adapter, bool) {
	for _, a := range registry {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}
