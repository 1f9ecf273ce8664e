// Package detect defines the boundary between the tiling pipeline and an
// object detection backend.
//
// A backend implements Detector: it receives one chip image and returns Raw
// detections (class, confidence, chip-local box). The model behind it is
// opaque; the pipeline only relies on the guarantees enforced by Adapter:
//
//   - confidences are clamped into [0,1]
//   - boxes are clamped to the chip bounds, and boxes that collapse to zero
//     area after clamping are dropped
//   - backend errors are returned as *InferenceFailure carrying the chip
//     index and origin
//
// Concrete backends live in sub-packages: remote (HTTP inference service),
// textocr (Tesseract word boxes) and blob (dark connected components, used
// for local runs and tests).
package detect
