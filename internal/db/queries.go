package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
	"github.com/surrealdb/surrealdb.go"
)

type areaRecord struct {
	AreaID string `json:"area_id"`
	Name   string `json:"name"`
}

type deviceRecord struct {
	DeviceID     string `json:"device_id"`
	AreaID       string `json:"area_id,omitempty"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Description  string `json:"description,omitempty"`
}

type entityRecord struct {
	EntityID          string         `json:"entity_id"`
	DeviceID          string         `json:"device_id,omitempty"`
	AreaID            string         `json:"area_id,omitempty"`
	Domain            string         `json:"domain"`
	State             string         `json:"state"`
	Attributes        map[string]any `json:"attributes,omitempty"`
	SupportedFeatures uint64         `json:"supported_features"`
}

type serviceRecord struct {
	Domain   string                 `json:"domain"`
	Position int                    `json:"position"`
	Name     string                 `json:"name"`
	Targets  []catalog.TargetFilter `json:"targets,omitempty"`
	Fields   []catalog.Field        `json:"fields,omitempty"`
}

// UpsertArea stores or refreshes an area.
func (c *Client) UpsertArea(ctx context.Context, area catalog.Area) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("area", $id) SET area_id = $id, name = $name
	`, map[string]any{"id": area.ID, "name": area.Name})
	if err != nil {
		return fmt.Errorf("upsert area %s: %w", area.ID, wrapQueryError(err))
	}
	return nil
}

// UpsertDevice stores or refreshes a device.
func (c *Client) UpsertDevice(ctx context.Context, device catalog.Device) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("device", $id) SET
			device_id = $id,
			area_id = $area,
			name = $name,
			manufacturer = $manufacturer,
			model = $model,
			description = $description
	`, map[string]any{
		"id":           device.ID,
		"area":         device.AreaID,
		"name":         device.Name,
		"manufacturer": device.Manufacturer,
		"model":        device.Model,
		"description":  device.Description,
	})
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", device.ID, wrapQueryError(err))
	}
	return nil
}

// UpsertEntity stores or refreshes an entity. areaID is the area the
// entity's device sits in, denormalized for scoped listings.
func (c *Client) UpsertEntity(ctx context.Context, entity catalog.Entity, areaID string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("entity", $id) SET
			entity_id = $id,
			device_id = $device,
			area_id = $area,
			domain = $domain,
			state = $state,
			attributes = $attributes,
			supported_features = $features,
			updated = time::now()
	`, map[string]any{
		"id":         entity.ID,
		"device":     entity.DeviceID,
		"area":       areaID,
		"domain":     entity.Domain(),
		"state":      entity.State,
		"attributes": entity.Attributes,
		"features":   entity.SupportedFeatures,
	})
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", entity.ID, wrapQueryError(err))
	}
	return nil
}

// UpdateEntityState refreshes the cached state of a single entity.
// Used by the event stream; unknown entities are ignored so the cache
// never learns entities the registry sync has not seen.
func (c *Client) UpdateEntityState(ctx context.Context, entityID, state string, attributes map[string]any) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("entity", $id) SET
			state = $state,
			attributes = $attributes,
			updated = time::now()
	`, map[string]any{"id": entityID, "state": state, "attributes": attributes})
	if err != nil {
		return fmt.Errorf("update entity state %s: %w", entityID, wrapQueryError(err))
	}
	return nil
}

// ReplaceServiceCatalog swaps the stored service descriptors for a
// domain. Position preserves the hub's declared order.
func (c *Client) ReplaceServiceCatalog(ctx context.Context, domain string, services []catalog.Service) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE service_catalog WHERE domain = $domain
	`, map[string]any{"domain": domain})
	if err != nil {
		return fmt.Errorf("clear service catalog %s: %w", domain, wrapQueryError(err))
	}

	for i, svc := range services {
		_, err := surrealdb.Query[any](ctx, c.db, `
			CREATE service_catalog SET
				domain = $domain,
				position = $position,
				name = $name,
				targets = $targets,
				fields = $fields
		`, map[string]any{
			"domain":   domain,
			"position": i,
			"name":     svc.Name,
			"targets":  svc.Targets,
			"fields":   svc.Fields,
		})
		if err != nil {
			return fmt.Errorf("store service %s.%s: %w", domain, svc.Name, wrapQueryError(err))
		}
	}
	return nil
}

// ListAreas returns every known area.
func (c *Client) ListAreas(ctx context.Context) ([]catalog.Area, error) {
	results, err := surrealdb.Query[[]areaRecord](ctx, c.db, `
		SELECT area_id, name FROM area ORDER BY name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", wrapQueryError(err))
	}

	records := firstResult(results)
	areas := make([]catalog.Area, len(records))
	for i, r := range records {
		areas[i] = catalog.Area{ID: r.AreaID, Name: r.Name}
	}
	return areas, nil
}

// ListDevices returns the devices in the given areas. An empty areaIDs
// slice means all areas.
func (c *Client) ListDevices(ctx context.Context, areaIDs []string) ([]catalog.Device, error) {
	sql := `SELECT device_id, area_id, name, manufacturer, model, description FROM device`
	vars := map[string]any{}
	if len(areaIDs) > 0 {
		sql += ` WHERE area_id IN $areas`
		vars["areas"] = areaIDs
	}
	sql += ` ORDER BY name`

	results, err := surrealdb.Query[[]deviceRecord](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", wrapQueryError(err))
	}

	records := firstResult(results)
	devices := make([]catalog.Device, len(records))
	for i, r := range records {
		devices[i] = catalog.Device{
			ID:           r.DeviceID,
			AreaID:       r.AreaID,
			Name:         r.Name,
			Manufacturer: r.Manufacturer,
			Model:        r.Model,
			Description:  r.Description,
		}
	}
	return devices, nil
}

// ListEntities returns entities with resolved capabilities, scoped by
// area and entity type. Empty slices mean unscoped.
func (c *Client) ListEntities(ctx context.Context, areaIDs, typeFilter []string) ([]catalog.EntityCapabilities, error) {
	sql := `SELECT entity_id, device_id, area_id, domain, state, attributes, supported_features FROM entity`
	vars := map[string]any{}
	var clauses []string
	if len(areaIDs) > 0 {
		clauses = append(clauses, "area_id IN $areas")
		vars["areas"] = areaIDs
	}
	if len(typeFilter) > 0 {
		clauses = append(clauses, "domain IN $domains")
		vars["domains"] = typeFilter
	}
	for i, clause := range clauses {
		if i == 0 {
			sql += " WHERE " + clause
		} else {
			sql += " AND " + clause
		}
	}
	sql += " ORDER BY entity_id"

	results, err := surrealdb.Query[[]entityRecord](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", wrapQueryError(err))
	}

	records := firstResult(results)
	serviceCache := make(map[string][]catalog.Service)

	caps := make([]catalog.EntityCapabilities, len(records))
	for i, r := range records {
		services, ok := serviceCache[r.Domain]
		if !ok {
			services, err = c.ServiceCatalog(ctx, r.Domain)
			if err != nil {
				return nil, err
			}
			serviceCache[r.Domain] = services
		}

		entity := catalog.Entity{
			ID:                r.EntityID,
			DeviceID:          r.DeviceID,
			State:             r.State,
			Attributes:        r.Attributes,
			SupportedFeatures: r.SupportedFeatures,
		}
		caps[i] = catalog.EntityCapabilities{
			Entity:   entity,
			Services: catalog.Resolve(r.Domain, r.SupportedFeatures, services, r.Attributes),
		}
	}
	return caps, nil
}

// ServiceCatalog returns the service descriptors declared for a domain,
// in the hub's declared order. Unknown domains yield an empty slice.
func (c *Client) ServiceCatalog(ctx context.Context, domain string) ([]catalog.Service, error) {
	results, err := surrealdb.Query[[]serviceRecord](ctx, c.db, `
		SELECT domain, position, name, targets, fields FROM service_catalog
		WHERE domain = $domain ORDER BY position
	`, map[string]any{"domain": domain})
	if err != nil {
		return nil, fmt.Errorf("service catalog %s: %w", domain, wrapQueryError(err))
	}

	records := firstResult(results)
	services := make([]catalog.Service, len(records))
	for i, r := range records {
		services[i] = catalog.Service{Name: r.Name, Targets: r.Targets, Fields: r.Fields}
	}
	return services, nil
}

// firstResult unwraps the first statement's rows from a query response.
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}
