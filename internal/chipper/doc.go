// Package chipper partitions a full-resolution raster into a grid of bounded
// sub-images ("chips") so that a fixed-resolution detector can operate on
// images of any size.
//
// # Planning
//
// A Chipper is configured once with a maximum chip side length, an integer
// downsample factor and an optional overlap margin. Plan computes the chip
// grid for one image and returns a Tiles sequence. Chip rectangles are
// computed eagerly (they are cheap) while chip pixels are cropped lazily by
// Tiles.At, so a caller dispatching chips to a worker pool only holds the
// pixels of the chips currently in flight.
//
// # Downsampling
//
// When the downsample factor D is greater than 1 the source image is reduced
// to ceil(w/D) x ceil(h/D) before the grid is computed. Every output pixel
// is the mean of one D x D source block; blocks on the last row and column
// are clipped to the image instead of being stretched, so the reduction is
// exact and repeated runs produce identical chips. Chip origins are expressed in this downsampled frame; multiplying by
// the chip's Scale gives the source position. Chip.SourceRect clamps the
// reprojected rectangle to the source bounds, which matters for the final
// partial block when w or h is not a multiple of D.
//
// # Grid Layouts
//
//   - LayoutFixed: every tile is MaxSide long except the last one on each
//     axis, which is clipped to the image edge. This is the default.
//   - LayoutBalanced: the axis is split into the fewest equal tiles that fit
//     within MaxSide, so edge tiles are at most one pixel shorter than the
//     rest.
//
// Both layouts clip instead of padding and, with a zero overlap margin,
// partition the image exactly.
//
// # Ordering
//
// Chips are always produced in row-major order: top-to-bottom, then
// left-to-right. Chip.Index is the position in that order and is stable for a
// given image and configuration.
package chipper
