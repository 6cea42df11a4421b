// Package catalog defines the area/device/entity catalog model and the
// capability resolution rules that decide which services an entity may invoke.
package catalog

import (
	"strings"
	"time"
)

// Area is a named location grouping devices (room, floor, office).
type Area struct {
	ID   string `json:"area_id"`
	Name string `json:"area_name"`
}

// Device is a physical device registered with the hub.
type Device struct {
	ID           string `json:"device_id"`
	AreaID       string `json:"area_id"`
	Name         string `json:"device_name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Entity is a single controllable or observable aspect of a device.
// The domain is derived from the entity ID prefix ("light.office_1" -> "light").
type Entity struct {
	ID                string         `json:"entity_id"`
	DeviceID          string         `json:"device_id"`
	State             string         `json:"state"`
	Attributes        map[string]any `json:"attributes,omitempty"`
	SupportedFeatures uint64         `json:"supported_features"`
}

// Domain returns the entity type tag encoded in the entity ID prefix.
// An ID without a "." separator yields an empty domain.
func (e Entity) Domain() string {
	domain, _, found := strings.Cut(e.ID, ".")
	if !found {
		return ""
	}
	return domain
}

// HasTimestampState reports whether the entity's state is a point in time.
// Motion sensors, locks and wireless switches expose several entities per
// device; history and trigger reads must pick the timestamp-typed one.
func (e Entity) HasTimestampState() bool {
	if dc, ok := e.Attributes["device_class"].(string); ok && dc == "timestamp" {
		return true
	}
	if _, err := time.Parse(time.RFC3339, e.State); err == nil {
		return true
	}
	return false
}

// TargetFilter restricts a service to entities of a domain that carry
// certain feature bits. Each element of Features is a bit group; the
// entity's supported-feature mask must intersect every group.
type TargetFilter struct {
	Domain   string   `json:"domain"`
	Features []uint64 `json:"supported_features,omitempty"`
}

// Field describes one service parameter. A field may carry a feature
// filter gating its availability and a selector describing legal values.
// Aggregate fields group advanced sub-fields one level deep.
type Field struct {
	Name     string         `json:"name"`
	Filter   []uint64       `json:"filter,omitempty"`
	Selector map[string]any `json:"selector,omitempty"`
	Fields   []Field        `json:"fields,omitempty"`
}

// Aggregate reports whether the field is a container of sub-fields
// rather than a directly settable parameter.
func (f Field) Aggregate() bool {
	return len(f.Fields) > 0
}

// Service describes one invocable hub service within a domain.
type Service struct {
	Name    string         `json:"name"`
	Targets []TargetFilter `json:"targets,omitempty"`
	Fields  []Field        `json:"fields,omitempty"`
}

// OptionSet holds the legal values for one service field, resolved from
// the entity's attributes. Values may be empty when the catalog carries
// no option list for the field.
type OptionSet struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}

// ResolvedService is one service an entity may legally invoke, with the
// option values its attributes permit.
type ResolvedService struct {
	Service string      `json:"service"`
	Options []OptionSet `json:"options,omitempty"`
}

// EntityCapabilities pairs an entity with its invocable services, in the
// catalog's declared service order.
type EntityCapabilities struct {
	Entity   Entity            `json:"entity"`
	Services []ResolvedService `json:"services"`
}

// DomainTags is the closed set of entity type tags the classifier may
// select from.
var DomainTags = []string{
	"sensor", "binary_sensor", "climate", "camera", "switch", "light",
	"button", "cover", "fan", "humidifier", "lawn_mower", "lock",
	"media_player", "remote", "vacuum", "valve", "water_heater",
}

// KnownDomain reports whether tag is part of the closed domain tag set.
func KnownDomain(tag string) bool {
	for _, t := range DomainTags {
		if t == tag {
			return true
		}
	}
	return false
}
