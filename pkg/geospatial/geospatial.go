package geospatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ParseBoundary parses and validates a GeoJSON feature describing a project
// site boundary. Only area geometries are accepted.
func ParseBoundary(raw []byte) (orb.Geometry, error) {
	feature, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		// Accept a bare geometry as well as a full feature
		geometry, gerr := geojson.UnmarshalGeometry(raw)
		if gerr != nil {
			return nil, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		return validateAreaGeometry(geometry.Geometry())
	}
	if feature.Geometry == nil {
		return nil, errors.New("invalid GeoJSON: no geometry")
	}
	return validateAreaGeometry(feature.Geometry)
}

func validateAreaGeometry(geometry orb.Geometry) (orb.Geometry, error) {
	switch geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return geometry, nil
	}
	return nil, fmt.Errorf("boundary must be a Polygon or MultiPolygon, got %s", geometry.GeoJSONType())
}

// AreaHectares returns the geodesic area of a lon/lat geometry in hectares
func AreaHectares(geometry orb.Geometry) float64 {
	return geo.Area(geometry) / 10000
}

// Centroid returns the centroid of a geometry
func Centroid(geometry orb.Geometry) orb.Point {
	centroid, _ := planar.CentroidArea(geometry)
	return centroid
}
