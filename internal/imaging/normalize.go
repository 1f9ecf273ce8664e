package imaging

import (
	"image"
	"image/color"
)

// Normalize converts single-band and 16-bit images to 8-bit RGB by a
// per-channel min/max stretch. Other images are returned unchanged. The
// second result reports whether a conversion took place.
func Normalize(img image.Image) (image.Image, bool) {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.RGBA64, *image.NRGBA64:
	default:
		return img, false
	}

	b := img.Bounds()
	lo := [3]uint16{0xffff, 0xffff, 0xffff}
	hi := [3]uint16{}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			for i, v := range channels(img, x, y) {
				lo[i] = min(lo[i], v)
				hi[i] = max(hi[i], v)
			}
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := out.PixOffset(0, y-b.Min.Y)
		for x := b.Min.X; x < b.Max.X; x++ {
			for c, v := range channels(img, x, y) {
				out.Pix[i+c] = stretch(v, lo[c], hi[c])
			}
			out.Pix[i+3] = 0xff
			i += 4
		}
	}
	return out, true
}

func channels(img image.Image, x, y int) [3]uint16 {
	c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
	return [3]uint16{c.R, c.G, c.B}
}

func stretch(v, lo, hi uint16) uint8 {
	if hi <= lo {
		return 0
	}
	return uint8(uint32(v-lo) * 255 / uint32(hi-lo))
}
