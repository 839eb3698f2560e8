package tools

// RegisterDefaults fills the catalog with the standard Earth-observation
// tool set. The region mapper is live; the remaining tools are declared so
// the planner can reason about them, and report not_implemented when chosen.
func RegisterDefaults(c *Catalog, mapper *RegionMapper) {
	c.Register(Definition{
		Name:        "region_mapper",
		Description: "Map a named geographic region or [lat, lon] coordinates to a bounding box for imagery queries",
		Parameters: map[string]any{
			"region_name": "string - location name, e.g. 'Munich'",
			"coordinates": "[lat, lon] - optional explicit point",
			"expand_bbox": "number - optional expansion factor, e.g. 0.1",
		},
	}, mapper.Invoke)

	for _, def := range []Definition{
		{
			Name:        "object_detector",
			Description: "Detect objects (vehicles, ships, aircraft) in satellite imagery over a bounding box",
			Parameters: map[string]any{
				"bbox":        "[min_lon, min_lat, max_lon, max_lat]",
				"object_type": "string - e.g. 'vehicle', 'ship'",
			},
		},
		{
			Name:        "satellite_data",
			Description: "Query satellite imagery archives for a bounding box and time range",
			Parameters: map[string]any{
				"bbox":       "[min_lon, min_lat, max_lon, max_lat]",
				"start_date": "ISO date",
				"end_date":   "ISO date",
			},
		},
		{
			Name:        "image_processor",
			Description: "Preprocess retrieved imagery: band math, tiling, cloud masking",
			Parameters: map[string]any{
				"operation": "string - e.g. 'cloud_mask', 'ndvi'",
			},
		},
		{
			Name:        "data_fusion",
			Description: "Fuse results from multiple sensors or passes into one product",
			Parameters: map[string]any{
				"sources": "list of result keys to combine",
			},
		},
		{
			Name:        "orbit_propagation",
			Description: "Propagate satellite orbits to predict pass times over a region",
			Parameters: map[string]any{
				"satellite": "string - satellite identifier",
				"bbox":      "[min_lon, min_lat, max_lon, max_lat]",
			},
		},
	} {
		c.Register(def, NotImplemented(def.Name))
	}
}
