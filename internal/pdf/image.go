package pdf

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spherical/redact-edge/internal/domain"
)

var supportedImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// LoadImage decodes a replacement image from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot open image %s", path), err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("cannot decode image %s", path), domain.ErrUnsupportedImage)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, domain.ValidationError(fmt.Sprintf("image %s (%s) is empty", path, format), domain.ErrUnsupportedImage)
	}
	return img, nil
}

// rgbSamples flattens img onto white and returns packed 8-bit RGB samples.
func rgbSamples(img image.Image) (samples []byte, width, height int) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Over)

	samples = make([]byte, 0, width*height*3)
	for i := 0; i < len(canvas.Pix); i += 4 {
		samples = append(samples, canvas.Pix[i], canvas.Pix[i+1], canvas.Pix[i+2])
	}
	return samples, width, height
}
