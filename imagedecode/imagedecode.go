// Package imagedecode defines the contract between the core and
// an external image/asset decoder collaborator. Decoding pixel
// data from an on-disk format is out of scope for the renderer
// core; the core only needs raw pixel bytes plus the dimensions
// and pixel format they were decoded as.
package imagedecode

import "github.com/vitreousgfx/forge/driver"

// Image is the decoded result of a single image asset.
type Image struct {
	Pixels []byte
	Width  int
	Height int
	Format driver.PixelFmt
}

// Decoder is the interface an external image-decoder
// collaborator implements. No package in this module looks one up
// or calls it.
type Decoder interface {
	// Decode reads and decodes the image at path.
	Decode(path string) (Image, error)
}
