// Package mapimg owns the image side of the map compositing pipeline.
//
// Responsibilities: the raw map grid model, tier classification of raw
// pixels, recency-weighted compositing across the history window, and
// palette rendering of the results.
// Key types: RawMap, IntensityGrid, CompositeGrid, Classifier, Renderer.
//
// No network or database code is allowed in this package.
package mapimg
