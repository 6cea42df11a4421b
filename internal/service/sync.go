package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/hearth-go/internal/catalog"
	"github.com/raphaelgruber/hearth-go/internal/hub"
)

// registrySource is the hub surface the sync reads from.
type registrySource interface {
	AreaRegistry(ctx context.Context) ([]catalog.Area, error)
	DeviceRegistry(ctx context.Context, areaID string) ([]catalog.Device, error)
	DeviceEntities(ctx context.Context, deviceID string) ([]string, error)
	ServiceRegistry(ctx context.Context) ([]hub.DomainServices, error)
	GetStates(ctx context.Context) ([]hub.State, error)
}

// catalogWriter is the cache surface the sync writes to.
type catalogWriter interface {
	WipeData(ctx context.Context) error
	UpsertArea(ctx context.Context, area catalog.Area) error
	UpsertDevice(ctx context.Context, device catalog.Device) error
	UpsertEntity(ctx context.Context, entity catalog.Entity, areaID string) error
	ReplaceServiceCatalog(ctx context.Context, domain string, services []catalog.Service) error
}

// Progress reports one step of a running sync.
type Progress struct {
	Stage  string
	Done   int
	Total  int
	Detail string
}

// Syncer mirrors the hub's registries into the catalog cache. The
// cache is wiped first; a sync that fails midway leaves a partial
// cache and should simply be rerun.
type Syncer struct {
	hub    registrySource
	db     catalogWriter
	logger *slog.Logger
}

func NewSyncer(h registrySource, db catalogWriter, logger *slog.Logger) *Syncer {
	return &Syncer{hub: h, db: db, logger: logger}
}

// Sync pulls areas, devices, entities and the service catalog from the
// hub and rebuilds the cache. progress may be nil.
func (s *Syncer) Sync(ctx context.Context, progress func(Progress)) error {
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	if err := s.db.WipeData(ctx); err != nil {
		return fmt.Errorf("wipe cache: %w", err)
	}

	areas, err := s.hub.AreaRegistry(ctx)
	if err != nil {
		return fmt.Errorf("fetch areas: %w", err)
	}
	for i, area := range areas {
		if err := s.db.UpsertArea(ctx, area); err != nil {
			return fmt.Errorf("store area %s: %w", area.ID, err)
		}
		report(Progress{Stage: "areas", Done: i + 1, Total: len(areas), Detail: area.Name})
	}

	// one bulk state fetch covers supported_features and attributes
	// for every entity we are about to store
	states, err := s.hub.GetStates(ctx)
	if err != nil {
		return fmt.Errorf("fetch states: %w", err)
	}
	statesByID := make(map[string]hub.State, len(states))
	for _, st := range states {
		statesByID[st.EntityID] = st
	}

	var devices []catalog.Device
	for _, area := range areas {
		areaDevices, err := s.hub.DeviceRegistry(ctx, area.ID)
		if err != nil {
			return fmt.Errorf("fetch devices for %s: %w", area.ID, err)
		}
		devices = append(devices, areaDevices...)
	}

	var entityCount int
	for i, device := range devices {
		if err := s.db.UpsertDevice(ctx, device); err != nil {
			return fmt.Errorf("store device %s: %w", device.ID, err)
		}

		entityIDs, err := s.hub.DeviceEntities(ctx, device.ID)
		if err != nil {
			return fmt.Errorf("fetch entities for %s: %w", device.ID, err)
		}
		for _, entityID := range entityIDs {
			state, ok := statesByID[entityID]
			if !ok {
				// registered but not reporting, e.g. disabled entities
				s.logger.Debug("entity has no state", "entity", entityID)
				state = hub.State{EntityID: entityID, State: "unavailable"}
			}
			entity := hub.EntityFromState(state, device.ID)
			if err := s.db.UpsertEntity(ctx, entity, device.AreaID); err != nil {
				return fmt.Errorf("store entity %s: %w", entityID, err)
			}
			entityCount++
		}
		report(Progress{Stage: "devices", Done: i + 1, Total: len(devices), Detail: device.Name})
	}

	registry, err := s.hub.ServiceRegistry(ctx)
	if err != nil {
		return fmt.Errorf("fetch service catalog: %w", err)
	}
	for i, domain := range registry {
		if err := s.db.ReplaceServiceCatalog(ctx, domain.Domain, domain.Services); err != nil {
			return fmt.Errorf("store service catalog %s: %w", domain.Domain, err)
		}
		report(Progress{Stage: "services", Done: i + 1, Total: len(registry), Detail: domain.Domain})
	}

	s.logger.Info("sync complete",
		"areas", len(areas),
		"devices", len(devices),
		"entities", entityCount,
		"domains", len(registry))
	return nil
}
