// Package imaging loads the rasters the detection pipeline runs on.
//
// A Raster is an immutable decoded image together with its provenance: the
// source path or URL, the detected format and, for GeoTIFF files, the affine
// pixel-to-world transform read from the file's model tags. The transform is
// carried through to results untouched; no stage of the pipeline uses it.
//
// # Sources
//
// Load accepts a local file path or an http(s) URL. PNG, JPEG, GIF, BMP,
// WebP and baseline TIFF are decoded. Remote GeoTIFFs are expensive to fetch,
// so loading one requires LoadOptions.ForceFetch; without it Load returns a
// *ForceFetchRequiredError before any bytes are transferred. Remote TIFFs are
// staged in a temporary file which is removed once decoded; other remote
// images are read into memory. Downloads are capped at MaxDownloadBytes.
//
// # Pixel Normalization
//
// Detectors expect 8-bit RGB. Single-band and 16-bit rasters are converted
// to *image.NRGBA by stretching every channel linearly from its minimum to
// its maximum value. A constant channel maps to zero. 8-bit color images are
// returned as decoded.
//
// # Thread Safety
//
// Loader and ImageCache are safe for concurrent use. Decoded images are
// shared between callers and must not be modified.
package imaging
