// Package tesseract provides a Tesseract-backed recognizer.
//
// The default build has no concrete backend so that the service does not
// require CGO or libtesseract. Enable the gosseract-backed recognizer with
// the build tag `tesseract`.
//
// Example:
//
//	go build -tags=tesseract ./...
package tesseract
