package camerarender

import "fmt"

// Posterize quantizes every byte of data in place into levels buckets.
//
// factor = 255 / levels, each byte becomes byte/factor*factor.
// levels=1 keeps only 0 and 255; levels=255 leaves data unchanged.
//
// Returns an error if levels is zero.
func Posterize(data []byte, levels uint8) error {
	if levels == 0 {
		return fmt.Errorf("camera-render: posterization levels must be >= 1")
	}

	factor := 255 / levels
	for i, b := range data {
		data[i] = b / factor * factor
	}
	return nil
}
