// Package labels turns the flat key/value metadata attached to a container into
// the DNS records it asks for.
//
// Keys live under a prefix (eg `dnsfik.`). A bare property (`dnsfik.type=AAAA`)
// sets a value shared by every group, a property with a group suffix
// (`dnsfik.hostname.web` or `dnsfik.web.hostname`) belongs to that group.
// The order of property and group is resolved by checking whether the first
// segment is a known property. A group literally named after a property
// (eg `dnsfik.type.hostname`) is therefore read as property `type` of group
// `hostname`; this is a known limitation of the key encoding.
package labels

import (
	"strings"
)

// Property names recognised under the prefix
const (
	PropertyHostname = "hostname"
	PropertyType     = "type"
	PropertyContent  = "content"
	PropertyTTL      = "ttl"
	PropertyProxied  = "proxied"
)

var properties = []string{PropertyHostname, PropertyType, PropertyContent, PropertyTTL, PropertyProxied}

func isProperty(segment string) bool {
	for _, property := range properties {
		if property == segment {
			return true
		}
	}
	return false
}

// group holds the raw property values of one record declaration
type group map[string]string

func (g group) merge(over group) group {
	out := make(group, len(g)+len(over))
	for k, v := range g {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// declarations is the result of scanning the prefixed keys of a metadata map
type declarations struct {
	defaults group
	groups   map[string]group
}

func (d *declarations) empty() bool {
	return len(d.defaults) == 0 && len(d.groups) == 0
}

func (d *declarations) hasHostname() bool {
	if _, ok := d.defaults[PropertyHostname]; ok {
		return true
	}
	for _, g := range d.groups {
		if _, ok := g[PropertyHostname]; ok {
			return true
		}
	}
	return false
}

// splitKey splits the part of a key after the prefix into a group id and a property.
// An empty group id means the value is a shared default.
// ok is false when the key does not name a known property.
func splitKey(rest string) (groupID string, property string, ok bool) {
	parts := strings.SplitN(rest, ".", 2)
	first := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return "", first, isProperty(first)
	}
	if isProperty(first) {
		return parts[1], first, parts[1] != ""
	}
	second := strings.ToLower(parts[1])
	return parts[0], second, parts[0] != "" && isProperty(second)
}
