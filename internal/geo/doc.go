// Package geo exports composite growth regions as geographic features.
//
// The published map is an unprojected raster with known country bounds, so
// pixel coordinates map to WGS84 by linear interpolation; no reprojection
// is performed. Regions are found by density-based clustering of composite
// cells above a score threshold.
package geo
