package datapoint

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Naming conventions for miio capability metadata.
const (
	// setterPrefix marks actions that write a datapoint ("setPower").
	setterPrefix = "set"

	// changedSuffix marks events that report a datapoint change ("powerChanged").
	changedSuffix = "Changed"

	// reservedName is the meta state field that never becomes a datapoint.
	reservedName = "state"
)

// Introspect derives the canonical datapoint set from one device's
// capability metadata.
//
// Derivation rules, in precedence order:
//  1. Every action named "set<Name>" yields a controllable datapoint
//     "<name>" (first letter lowered) whose value kind comes from the
//     action's return kind.
//  2. Every event named "<name>Changed" yields (or enriches) a statusable
//     datapoint; its kind applies only when the action didn't already
//     resolve one.
//  3. Datapoints still missing a kind fall back to the state field of the
//     same canonical name, if present.
//  4. The reserved canonical name "state" is dropped unconditionally.
//
// The result is ordered deterministically: action-derived names first (in
// sorted action-name order), then event-only names (in sorted event-name
// order). Introspecting the same metadata twice yields an identical slice.
//
// A device with no actions, events, or state yields an empty (non-nil)
// slice; this is not an error.
func Introspect(meta RawMetadata) []Descriptor {
	type entry struct {
		desc Descriptor
		kind string
	}

	byName := make(map[string]*entry)
	var order []string

	track := func(name string) *entry {
		e, ok := byName[name]
		if !ok {
			e = &entry{desc: Descriptor{Name: name}}
			byName[name] = e
			order = append(order, name)
		}
		return e
	}

	for _, action := range sortedKeys(meta.Actions) {
		if !strings.HasPrefix(action, setterPrefix) {
			continue
		}
		name := lowerFirst(strings.TrimPrefix(action, setterPrefix))
		if name == "" {
			continue
		}

		e := track(name)
		e.desc.IsControllable = true
		e.desc.SourceAction = action
		e.kind = meta.Actions[action].ReturnKind
	}

	for _, event := range sortedKeys(meta.Events) {
		if !strings.HasSuffix(event, changedSuffix) {
			continue
		}
		name := lowerFirst(strings.TrimSuffix(event, changedSuffix))
		if name == "" {
			continue
		}

		e := track(name)
		e.desc.IsStatusable = true
		e.desc.SourceEvent = event
		// Action return kinds take precedence over event kinds.
		if e.kind == "" {
			e.kind = meta.Events[event].Kind
		}
	}

	descriptors := make([]Descriptor, 0, len(order))
	for _, name := range order {
		if name == reservedName {
			continue
		}

		e := byName[name]
		if e.kind == "" {
			if st, ok := meta.State[name]; ok {
				e.kind = st.Kind
			}
		}
		e.desc.ValueType = MapKind(e.kind)
		descriptors = append(descriptors, e.desc)
	}

	return descriptors
}

// sortedKeys returns the map's keys in sorted order, for deterministic
// iteration.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lowerFirst lowercases the first rune of s.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// UpperFirst uppercases the first rune of s.
// Used to rebuild setter action names from canonical datapoint names.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// SetterAction returns the setter action name for a canonical datapoint
// name ("power" → "setPower").
func SetterAction(name string) string {
	return setterPrefix + UpperFirst(name)
}
