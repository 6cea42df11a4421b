package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
)

// Registry access. The hub's REST surface has no registry endpoints,
// so areas, devices and entity membership come from the template API;
// service descriptors come from /api/services.

// AreaRegistry fetches all areas.
func (c *Client) AreaRegistry(ctx context.Context) ([]catalog.Area, error) {
	const tmpl = `[{% for a in areas() %}{"area_id": {{ a | to_json }}, "area_name": {{ area_name(a) | to_json }}}{% if not loop.last %},{% endif %}{% endfor %}]`

	rendered, err := c.RenderTemplate(ctx, tmpl)
	if err != nil {
		return nil, fmt.Errorf("area registry: %w", err)
	}

	var areas []catalog.Area
	if err := json.Unmarshal([]byte(rendered), &areas); err != nil {
		return nil, fmt.Errorf("parse area registry: %w", err)
	}
	return areas, nil
}

// DeviceRegistry fetches the devices registered in an area.
func (c *Client) DeviceRegistry(ctx context.Context, areaID string) ([]catalog.Device, error) {
	tmpl := fmt.Sprintf(`[{%% for d in area_devices(%q) %%}`+
		`{"device_id": {{ d | to_json }},`+
		` "area_id": %q,`+
		` "device_name": {{ device_attr(d, "name_by_user") | default(device_attr(d, "name"), true) | to_json }},`+
		` "manufacturer": {{ device_attr(d, "manufacturer") | default("", true) | to_json }},`+
		` "model": {{ device_attr(d, "model") | default("", true) | to_json }}}`+
		`{%% if not loop.last %%},{%% endif %%}{%% endfor %%}]`, areaID, areaID)

	rendered, err := c.RenderTemplate(ctx, tmpl)
	if err != nil {
		return nil, fmt.Errorf("device registry %s: %w", areaID, err)
	}

	var devices []catalog.Device
	if err := json.Unmarshal([]byte(rendered), &devices); err != nil {
		return nil, fmt.Errorf("parse device registry %s: %w", areaID, err)
	}
	return devices, nil
}

// DeviceEntities fetches the entity ids belonging to a device.
func (c *Client) DeviceEntities(ctx context.Context, deviceID string) ([]string, error) {
	tmpl := fmt.Sprintf(`{{ device_entities(%q) | to_json }}`, deviceID)

	rendered, err := c.RenderTemplate(ctx, tmpl)
	if err != nil {
		return nil, fmt.Errorf("device entities %s: %w", deviceID, err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(rendered), &ids); err != nil {
		return nil, fmt.Errorf("parse device entities %s: %w", deviceID, err)
	}
	return ids, nil
}

// DomainServices is one domain's service catalog in declared order.
type DomainServices struct {
	Domain   string
	Services []catalog.Service
}

// ServiceRegistry fetches the full service catalog. Capability
// resolution depends on the hub's declared service order, and JSON
// objects carry that order only positionally, so the services and
// fields objects are walked token by token instead of through a map.
func (c *Client) ServiceRegistry(ctx context.Context) ([]DomainServices, error) {
	body, err := c.doRaw(ctx, http.MethodGet, "/api/services", nil)
	if err != nil {
		return nil, fmt.Errorf("service registry: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := expectDelim(dec, '['); err != nil {
		return nil, fmt.Errorf("parse service registry: %w", err)
	}

	var out []DomainServices
	for dec.More() {
		var entry DomainServices
		err := decodeOrderedObject(dec, func(key string) error {
			switch key {
			case "domain":
				return dec.Decode(&entry.Domain)
			case "services":
				services, err := decodeOrderedServices(dec)
				if err != nil {
					return err
				}
				entry.Services = services
				return nil
			default:
				return skipValue(dec)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("parse service registry: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

type serviceTarget struct {
	Entity []struct {
		Domain            []string `json:"domain"`
		SupportedFeatures []uint64 `json:"supported_features"`
	} `json:"entity"`
}

type fieldBody struct {
	Filter struct {
		SupportedFeatures []uint64 `json:"supported_features"`
	} `json:"filter"`
	Selector map[string]any `json:"selector"`
}

func decodeOrderedServices(dec *json.Decoder) ([]catalog.Service, error) {
	var services []catalog.Service
	err := decodeOrderedObject(dec, func(name string) error {
		svc := catalog.Service{Name: name}
		err := decodeOrderedObject(dec, func(key string) error {
			switch key {
			case "target":
				var target serviceTarget
				if err := dec.Decode(&target); err != nil {
					return err
				}
				for _, entity := range target.Entity {
					if len(entity.Domain) == 0 {
						continue
					}
					for _, domain := range entity.Domain {
						svc.Targets = append(svc.Targets, catalog.TargetFilter{
							Domain:   domain,
							Features: entity.SupportedFeatures,
						})
					}
				}
				return nil
			case "fields":
				fields, err := decodeOrderedFields(dec)
				if err != nil {
					return err
				}
				svc.Fields = fields
				return nil
			default:
				return skipValue(dec)
			}
		})
		if err != nil {
			return err
		}
		services = append(services, svc)
		return nil
	})
	return services, err
}

func decodeOrderedFields(dec *json.Decoder) ([]catalog.Field, error) {
	var fields []catalog.Field
	err := decodeOrderedObject(dec, func(name string) error {
		// advanced_fields nests a second "fields" object one level deep
		if name == "advanced_fields" {
			var sub []catalog.Field
			err := decodeOrderedObject(dec, func(key string) error {
				if key != "fields" {
					return skipValue(dec)
				}
				var err error
				sub, err = decodeOrderedFields(dec)
				return err
			})
			if err != nil {
				return err
			}
			fields = append(fields, catalog.Field{Name: name, Fields: sub})
			return nil
		}

		var body fieldBody
		if err := dec.Decode(&body); err != nil {
			return err
		}
		fields = append(fields, catalog.Field{
			Name:     name,
			Filter:   body.Filter.SupportedFeatures,
			Selector: body.Selector,
		})
		return nil
	})
	return fields, err
}

// decodeOrderedObject walks one JSON object, invoking fn per key. fn
// must consume exactly the key's value from the decoder.
func decodeOrderedObject(dec *json.Decoder, fn func(key string) error) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// skipValue consumes and discards the next value.
func skipValue(dec *json.Decoder) error {
	var discard json.RawMessage
	return dec.Decode(&discard)
}

// EntityFromState builds a catalog entity from a reported state.
func EntityFromState(state State, deviceID string) catalog.Entity {
	var features uint64
	if raw, ok := state.Attributes["supported_features"]; ok {
		switch v := raw.(type) {
		case float64:
			features = uint64(v)
		case int:
			features = uint64(v)
		case int64:
			features = uint64(v)
		case uint64:
			features = v
		}
	}
	return catalog.Entity{
		ID:                state.EntityID,
		DeviceID:          deviceID,
		State:             state.State,
		Attributes:        state.Attributes,
		SupportedFeatures: features,
	}
}
