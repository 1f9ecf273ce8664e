// Package textocr detects text in chips using the Tesseract OCR engine (via
// gosseract/v2). Every recognized word, or block, becomes one detection of
// class "text" whose confidence is Tesseract's score scaled to 0-1.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// # Concurrency
//
// A gosseract client is not safe for concurrent use, so Detect creates one
// client per call. The pipeline runs one call per chip.
package textocr
