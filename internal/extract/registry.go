package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// Kind distinguishes metrics parsed from a numeric capture group from
// metrics counted by match frequency alone.
type Kind int

const (
	// KindNumeric extracts the first capture group as a float value.
	KindNumeric Kind = iota
	// KindOccurrence counts matches; every sample carries value 1.0.
	KindOccurrence
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k == KindOccurrence {
		return "occurrence"
	}
	return "numeric"
}

// ParseKind converts a wire name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "numeric":
		return KindNumeric, nil
	case "occurrence":
		return KindOccurrence, nil
	default:
		return KindNumeric, fmt.Errorf("unknown metric kind %q", s)
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its wire name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Definition is an uncompiled pattern entry, used for registry
// construction and YAML pattern packs.
type Definition struct {
	Name string
	Kind Kind
	Expr string
}

// Pattern is a compiled, named metric pattern.
type Pattern struct {
	Name  string
	Kind  Kind
	Regex *regexp.Regexp
}

// TimestampMetric names the pattern whose three capture groups hold an
// [HH:MM:SS.mmm] prefix converted to total fractional seconds.
const TimestampMetric = "rtt_timestamp_s"

// Registry is an immutable, ordered collection of metric patterns. It is
// built once and safe for concurrent use by any number of extractors;
// Merge and Filter return new registries and never mutate the receiver.
type Registry struct {
	patterns []Pattern
	byName   map[string]int
}

// NewRegistry compiles the supplied definitions into a registry,
// preserving their order. A later definition with a duplicate name
// replaces the earlier one in place.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(defs))}
	for _, def := range defs {
		re, err := regexp.Compile(def.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", def.Name, err)
		}
		p := Pattern{Name: def.Name, Kind: def.Kind, Regex: re}
		if i, ok := r.byName[def.Name]; ok {
			r.patterns[i] = p
			continue
		}
		r.byName[def.Name] = len(r.patterns)
		r.patterns = append(r.patterns, p)
	}
	return r, nil
}

// Merge returns a new registry combining the receiver's patterns with the
// supplied definitions. Definitions with names already present override
// the existing pattern; the receiver is left untouched.
func (r *Registry) Merge(defs []Definition) (*Registry, error) {
	combined := make([]Definition, 0, len(r.patterns)+len(defs))
	for _, p := range r.patterns {
		combined = append(combined, Definition{Name: p.Name, Kind: p.Kind, Expr: p.Regex.String()})
	}
	combined = append(combined, defs...)
	return NewRegistry(combined)
}

// Filter returns a new registry containing only the named patterns, in
// the receiver's order. Unknown names are ignored; the result may be
// empty.
func (r *Registry) Filter(names []string) *Registry {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := &Registry{byName: make(map[string]int)}
	for _, p := range r.patterns {
		if _, ok := want[p.Name]; !ok {
			continue
		}
		out.byName[p.Name] = len(out.patterns)
		out.patterns = append(out.patterns, p)
	}
	return out
}

// Lookup returns the pattern registered under name.
func (r *Registry) Lookup(name string) (Pattern, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Pattern{}, false
	}
	return r.patterns[i], true
}

// Names returns every registered metric name in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.Name
	}
	return names
}

// SortedNames returns every registered metric name in lexical order,
// suitable for error messages.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	return len(r.patterns)
}

// defaultDefinitions is the built-in pattern table covering BLE
// connectivity, Zephyr system health, and error/warning rates in
// embedded device logs.
var defaultDefinitions = []Definition{
	// BLE / connectivity
	{Name: "bt_notification_interval_ms", Kind: KindNumeric, Expr: `[Ii]nterval[:\s]+(\d+(?:\.\d+)?)\s*ms`},
	{Name: "bt_notify_count", Kind: KindNumeric, Expr: `notify_count=(\d+)`},
	{Name: "bt_conn_interval_ms", Kind: KindNumeric, Expr: `[Cc]onn[ection]?\s+[Ii]nterval[:\s]+(\d+(?:\.\d+)?)`},
	{Name: "bt_mtu", Kind: KindNumeric, Expr: `MTU\s+exchanged[:\s]+(\d+)`},
	{Name: "bt_rssi", Kind: KindNumeric, Expr: `RSSI[:\s]+([-\d]+)`},
	{Name: "bt_backpressure", Kind: KindOccurrence, Expr: `TX\s+buffer\s+full`},
	{Name: "bt_disconnect", Kind: KindOccurrence, Expr: `[Dd]isconnected`},

	// Zephyr system health
	{Name: "zephyr_heap_free_bytes", Kind: KindNumeric, Expr: `heap_free=(\d+)`},
	{Name: "zephyr_heap_alloc_bytes", Kind: KindNumeric, Expr: `heap_alloc=(\d+)`},
	{Name: "zephyr_stack_unused_bytes", Kind: KindNumeric, Expr: `unused\s+stack[:\s]+(\d+)`},
	{Name: "zephyr_irq_latency_us", Kind: KindNumeric, Expr: `irq_latency[:\s]+(\d+(?:\.\d+)?)\s*us`},
	{Name: "zephyr_workq_latency_ms", Kind: KindNumeric, Expr: `workq_latency[:\s]+(\d+(?:\.\d+)?)\s*ms`},

	// Error / warning rate
	{Name: "log_error", Kind: KindOccurrence, Expr: `\bERR\b|\bERROR\b`},
	{Name: "log_warning", Kind: KindOccurrence, Expr: `\bWRN\b|\bWARN\b`},

	// RTT timestamp prefix, converted to fractional seconds
	{Name: TimestampMetric, Kind: KindNumeric, Expr: `^\[(\d+):(\d+):(\d+\.\d+)\]`},
}

var defaultRegistry = func() *Registry {
	r, err := NewRegistry(defaultDefinitions)
	if err != nil {
		panic(err)
	}
	return r
}()

// DefaultRegistry returns the process-wide built-in pattern registry.
// The registry is constructed once and shared read-only.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
