package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	devicesArea []string
	devicesType []string
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List areas, devices, or entities from the cache",
	Long: `List the cached catalog with optional filtering.

Subcommands:
  areas     List all areas
  entities  List entities with their invocable services

Examples:
  hearth devices
  hearth devices --area office
  hearth devices entities --area office --type light
  hearth devices areas`,
	RunE: runDevices,
}

var devicesAreasCmd = &cobra.Command{
	Use:   "areas",
	Short: "List all areas",
	RunE:  runDevicesAreas,
}

var devicesEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List entities with their invocable services",
	RunE:  runDevicesEntities,
}

func init() {
	devicesCmd.Flags().StringSliceVarP(&devicesArea, "area", "a", nil, "filter by area id")
	devicesEntitiesCmd.Flags().StringSliceVarP(&devicesArea, "area", "a", nil, "filter by area id")
	devicesEntitiesCmd.Flags().StringSliceVarP(&devicesType, "type", "t", nil, "filter by entity type")

	devicesCmd.AddCommand(devicesAreasCmd)
	devicesCmd.AddCommand(devicesEntitiesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	devices, err := dbClient.ListDevices(ctx, devicesArea)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found. Run 'hearth sync' first.")
		return nil
	}

	fmt.Printf("Devices (%d):\n\n", len(devices))
	for _, d := range devices {
		fmt.Printf("- %s [%s]\n", d.Name, d.AreaID)
		if verbose {
			if d.Manufacturer != "" || d.Model != "" {
				fmt.Printf("  %s %s\n", d.Manufacturer, d.Model)
			}
			fmt.Printf("  id: %s\n", d.ID)
		}
	}

	return nil
}

func runDevicesAreas(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	areas, err := dbClient.ListAreas(ctx)
	if err != nil {
		return fmt.Errorf("list areas: %w", err)
	}

	if len(areas) == 0 {
		fmt.Println("No areas found. Run 'hearth sync' first.")
		return nil
	}

	fmt.Printf("Areas (%d):\n\n", len(areas))
	for _, a := range areas {
		fmt.Printf("- %s (%s)\n", a.Name, a.ID)
	}

	return nil
}

func runDevicesEntities(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	entities, err := dbClient.ListEntities(ctx, devicesArea, devicesType)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}

	if len(entities) == 0 {
		fmt.Println("No entities found. Run 'hearth sync' first.")
		return nil
	}

	fmt.Printf("Entities (%d):\n\n", len(entities))
	for _, e := range entities {
		fmt.Printf("- %s: %s\n", e.Entity.ID, e.Entity.State)
		if verbose {
			names := make([]string, 0, len(e.Services))
			for _, svc := range e.Services {
				names = append(names, svc.Service)
			}
			if len(names) > 0 {
				fmt.Printf("  services: %s\n", strings.Join(names, ", "))
			}
		}
	}

	return nil
}
