package geometry

// Affine maps pixel coordinates to a spatial reference system:
//
//	X = C + px*A + py*B
//	Y = F + px*D + py*E
//
// The coefficient order matches the common six-element geotransform used by
// GIS tooling (origin, pixel width, row rotation, origin, column rotation,
// pixel height), so E is negative for north-up rasters.
type Affine struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
	E float64 `json:"e"`
	F float64 `json:"f"`
}

// Identity returns the transform that leaves pixel coordinates unchanged.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// Apply maps the pixel coordinate (px, py) into world coordinates.
func (t Affine) Apply(px, py float64) (float64, float64) {
	return t.C + px*t.A + py*t.B, t.F + px*t.D + py*t.E
}

// ApplyBox maps the four corners of a pixel box and returns their world
// bounding box. Rotated transforms yield the enclosing axis-aligned box.
func (t Affine) ApplyBox(b Box) Box {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = t.Apply(b.XMin, b.YMin)
	xs[1], ys[1] = t.Apply(b.XMax, b.YMin)
	xs[2], ys[2] = t.Apply(b.XMin, b.YMax)
	xs[3], ys[3] = t.Apply(b.XMax, b.YMax)

	out := Box{XMin: xs[0], YMin: ys[0], XMax: xs[0], YMax: ys[0]}
	for i := 1; i < 4; i++ {
		if xs[i] < out.XMin {
			out.XMin = xs[i]
		}
		if xs[i] > out.XMax {
			out.XMax = xs[i]
		}
		if ys[i] < out.YMin {
			out.YMin = ys[i]
		}
		if ys[i] > out.YMax {
			out.YMax = ys[i]
		}
	}
	return out
}
