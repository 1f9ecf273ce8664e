// Package geometry provides the value types shared by every stage of the
// tiled detection pipeline: axis-aligned boxes, integer points and the
// affine pixel-to-world transform carried by geo-referenced rasters.
//
// # Coordinate System
//
// Pixel coordinates follow the image package convention: (0,0) is the
// top-left corner, X increases rightward and Y increases downward. Boxes are
// expressed in float64 pixel units so that remapped and downsampled
// coordinates do not lose precision; (XMin, YMin) is the top-left corner and
// (XMax, YMax) the bottom-right corner.
//
// # Invariants
//
// A Box is valid when XMin <= XMax and YMin <= YMax. Every stage that
// produces a Box re-validates it; a violation after a coordinate transform is
// reported as a *GeometryError, which always indicates a bug rather than bad
// input.
package geometry
