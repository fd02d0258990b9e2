package app

import (
	"fmt"
	"image"
	_ "image/png"
	"os"

	"github.com/gekko3d/subd/terrainrt/rt/core"
	_ "golang.org/x/image/tiff"
)

// LoadHeightmap decodes a PNG or TIFF raster into a height field. 16-bit
// grayscale keeps its full precision; other formats are converted.
func LoadHeightmap(path string) (*core.HeightField, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no heightmap path", core.ErrMissingHeightField)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMissingHeightField, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode heightmap %s: %w", path, err)
	}
	hf, err := core.NewHeightField(img)
	if err != nil {
		return nil, fmt.Errorf("heightmap %s (%s): %w", path, format, err)
	}
	return hf, nil
}
