package bridge

import (
	"sort"
	"sync"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/mqtt"
)

// Binding maps one inbound control topic to the device action it invokes.
// Bindings live for one configuration epoch: a reload rebuilds the table.
type Binding struct {
	// Topic is the control topic, "dps/{datapointId}/control".
	Topic string `json:"topic"`

	// DeviceTypeID selects the live device handle at dispatch time.
	DeviceTypeID string `json:"deviceTypeId"`

	// Action is the setter action name, "set" + capitalized datapoint name.
	Action string `json:"action"`
}

// BindingTable is the control topic table of the subscription binder.
//
// Thread Safety: all methods are safe for concurrent use.
type BindingTable struct {
	mu      sync.RWMutex
	byTopic map[string]Binding
}

// NewBindingTable creates an empty binding table.
func NewBindingTable() *BindingTable {
	return &BindingTable{byTopic: make(map[string]Binding)}
}

// Rebuild replaces the table with bindings derived from a directory
// snapshot: one binding per controllable datapoint that has a
// directory-assigned id.
//
// Returns the bindings that are new in this epoch (to subscribe) and the
// topics that disappeared (to unsubscribe). Clearing stale topics first is
// what prevents a removed datapoint's control topic from still dispatching.
func (t *BindingTable) Rebuild(records []directory.DeviceRecord, topics mqtt.Topics) (added []Binding, removed []string) {
	fresh := make(map[string]Binding)
	for i := range records {
		rec := &records[i]
		for j := range rec.Datapoints {
			dp := &rec.Datapoints[j]
			if !dp.Config.IsControllable || dp.ID == "" {
				continue
			}
			topic := topics.DatapointControl(dp.ID)
			fresh[topic] = Binding{
				Topic:        topic,
				DeviceTypeID: rec.General.Type,
				Action:       datapoint.SetterAction(dp.Name),
			}
		}
	}

	t.mu.Lock()
	old := t.byTopic
	t.byTopic = fresh
	t.mu.Unlock()

	for topic := range old {
		if _, still := fresh[topic]; !still {
			removed = append(removed, topic)
		}
	}
	for topic, binding := range fresh {
		if _, had := old[topic]; !had {
			added = append(added, binding)
		}
	}

	sort.Strings(removed)
	sort.Slice(added, func(i, j int) bool { return added[i].Topic < added[j].Topic })
	return added, removed
}

// Lookup returns the binding for a topic.
func (t *BindingTable) Lookup(topic string) (Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	binding, ok := t.byTopic[topic]
	return binding, ok
}

// Snapshot returns all bindings, ordered by topic.
func (t *BindingTable) Snapshot() []Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Binding, 0, len(t.byTopic))
	for _, b := range t.byTopic {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Len returns the number of bindings.
func (t *BindingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byTopic)
}
