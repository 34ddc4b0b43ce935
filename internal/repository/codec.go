package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

// ErrNotFound is returned when a single-row lookup matches nothing
var ErrNotFound = errors.New("not found")

// timestampLayout is fixed width so TEXT columns sort chronologically
const timestampLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// tolerate rows written by other tools
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// EncodeTrails stores trails as a GeoJSON FeatureCollection
func EncodeTrails(trails []models.Trail) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, t := range trails {
		var geom orb.Geometry = t.Geometry
		if len(t.Geometry) == 1 {
			geom = t.Geometry[0]
		}
		f := geojson.NewFeature(geom)
		f.Properties["name"] = t.Name
		if len(t.WayIDs) > 0 {
			f.Properties["way_ids"] = t.WayIDs
		}
		if t.RelationID != nil {
			f.Properties["relation_id"] = *t.RelationID
		}
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

// DecodeTrails reads trails from a GeoJSON FeatureCollection. Features
// without line geometry are skipped.
func DecodeTrails(region string, data []byte) ([]models.Trail, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trail features: %w", err)
	}

	trails := make([]models.Trail, 0, len(fc.Features))
	for _, f := range fc.Features {
		trail, ok := TrailFromFeature(region, f)
		if !ok {
			continue
		}
		trails = append(trails, trail)
	}
	return trails, nil
}

// TrailFromFeature converts a LineString or MultiLineString feature
func TrailFromFeature(region string, f *geojson.Feature) (models.Trail, bool) {
	trail := models.Trail{Region: region, Name: f.Properties.MustString("name", "")}

	switch g := f.Geometry.(type) {
	case orb.LineString:
		trail.Geometry = orb.MultiLineString{g}
	case orb.MultiLineString:
		trail.Geometry = g
	default:
		return trail, false
	}

	if ids, ok := f.Properties["way_ids"].([]interface{}); ok {
		for _, v := range ids {
			if n, ok := v.(float64); ok {
				trail.WayIDs = append(trail.WayIDs, int64(n))
			}
		}
	}
	if v, ok := f.Properties["relation_id"].(float64); ok {
		id := int64(v)
		trail.RelationID = &id
	}
	return trail, true
}
