package catalog

import "context"

// Store is the read side of the entity catalog. The pipeline only ever
// reads descriptors; writes happen through hub service calls.
type Store interface {
	// ListAreas returns every known area.
	ListAreas(ctx context.Context) ([]Area, error)

	// ListDevices returns the devices in the given areas. An empty
	// areaIDs slice means all areas.
	ListDevices(ctx context.Context, areaIDs []string) ([]Device, error)

	// ListEntities returns entities with their resolved capabilities,
	// scoped by area and entity type. Empty slices mean unscoped.
	ListEntities(ctx context.Context, areaIDs, typeFilter []string) ([]EntityCapabilities, error)

	// ServiceCatalog returns the service descriptors declared for a
	// domain, in the hub's declared order. Unknown domains yield an
	// empty slice.
	ServiceCatalog(ctx context.Context, domain string) ([]Service, error)
}
