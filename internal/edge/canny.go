package edge

import (
	"context"
	"image"
	"math"
)

const (
	edgeOn  uint8 = 255
	edgeOff uint8 = 0

	// tan(22.5°) and tan(67.5°) bound the four quantized gradient directions
	tan22 = 0.41421356237309504880
	tan67 = 2.41421356237309504880
)

// pixel classes after non-maximum suppression
const (
	classNone uint8 = iota
	classWeak
	classStrong
)

// cannyDetector is the pure Go Canny implementation. It is safe for
// concurrent use; per-call buffers are never shared between calls.
type cannyDetector struct {
	pool *WorkerPool
}

// NewCannyDetector creates a detector that splits gradient work across
// workers goroutines (CPU count when <= 0).
func NewCannyDetector(workers int) Detector {
	pool := NewWorkerPool(workers)
	pool.Start()
	return &cannyDetector{pool: pool}
}

func (d *cannyDetector) Name() string {
	return "native"
}

func (d *cannyDetector) Close() error {
	d.pool.Close()
	return nil
}

// Detect runs grayscale conversion, optional blur, Sobel gradients,
// non-maximum suppression and hysteresis tracing.
func (d *cannyDetector) Detect(ctx context.Context, img image.Image, opts Options) (*image.Gray, error) {
	gray := smooth(ToGray(img), opts.BlurRadius)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.cannyGray(ctx, gray, opts)
}

func (d *cannyDetector) cannyGray(ctx context.Context, gray *image.Gray, opts Options) (*image.Gray, error) {
	width, height := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return out, nil
	}

	low, high := opts.ordered()
	g := &gradients{
		width:  width,
		height: height,
		dx:     make([]int32, width*height),
		dy:     make([]int32, width*height),
		mag:    make([]float64, width*height),
	}

	rows := strips(height, d.pool.Size())

	jobs := make([]func(), len(rows))
	for i, r := range rows {
		r := r
		jobs[i] = func() { g.sobel(gray, r[0], r[1], opts.L2Gradient) }
	}
	d.pool.Run(jobs...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	class := make([]uint8, width*height)
	for i, r := range rows {
		r := r
		jobs[i] = func() { g.suppress(class, r[0], r[1], low, high) }
	}
	d.pool.Run(jobs...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hysteresis(class, out.Pix, width, height)
	return out, nil
}

type gradients struct {
	width, height int
	dx, dy        []int32
	mag           []float64
}

// sobel fills dx, dy and mag for rows [y0, y1) using 3x3 kernels with
// replicated borders.
func (g *gradients) sobel(gray *image.Gray, y0, y1 int, l2 bool) {
	w, h := g.width, g.height
	px := func(x, y int) int32 {
		x = clamp(x, 0, w-1)
		y = clamp(y, 0, h-1)
		return int32(gray.Pix[y*gray.Stride+x])
	}

	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			tl, t, tr := px(x-1, y-1), px(x, y-1), px(x+1, y-1)
			l, r := px(x-1, y), px(x+1, y)
			bl, b, br := px(x-1, y+1), px(x, y+1), px(x+1, y+1)

			gx := (tr + 2*r + br) - (tl + 2*l + bl)
			gy := (bl + 2*b + br) - (tl + 2*t + tr)

			i := y*w + x
			g.dx[i] = gx
			g.dy[i] = gy
			if l2 {
				g.mag[i] = math.Sqrt(float64(gx)*float64(gx) + float64(gy)*float64(gy))
			} else {
				g.mag[i] = float64(abs32(gx) + abs32(gy))
			}
		}
	}
}

// magAt returns the magnitude at (x, y), zero outside the image
func (g *gradients) magAt(x, y int) float64 {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return 0
	}
	return g.mag[y*g.width+x]
}

// suppress keeps local maxima along the gradient direction and classifies
// them against the thresholds for rows [y0, y1).
func (g *gradients) suppress(class []uint8, y0, y1 int, low, high float64) {
	w := g.width
	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := g.mag[i]
			if m <= low {
				continue
			}

			ax := math.Abs(float64(g.dx[i]))
			ay := math.Abs(float64(g.dy[i]))

			var isMax bool
			switch {
			case ay < ax*tan22:
				// mostly horizontal gradient: compare left and right
				isMax = m > g.magAt(x-1, y) && m >= g.magAt(x+1, y)
			case ay > ax*tan67:
				// mostly vertical gradient: compare above and below
				isMax = m > g.magAt(x, y-1) && m >= g.magAt(x, y+1)
			default:
				s := 1
				if (g.dx[i] < 0) != (g.dy[i] < 0) {
					s = -1
				}
				isMax = m > g.magAt(x-s, y-1) && m > g.magAt(x+s, y+1)
			}

			if !isMax {
				continue
			}
			if m > high {
				class[i] = classStrong
			} else {
				class[i] = classWeak
			}
		}
	}
}

// hysteresis marks strong pixels and every weak pixel 8-connected to one
func hysteresis(class []uint8, pix []uint8, width, height int) {
	stack := make([]int, 0, 1024)
	for i, c := range class {
		if c == classStrong {
			pix[i] = edgeOn
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width

		for ny := y - 1; ny <= y+1; ny++ {
			if ny < 0 || ny >= height {
				continue
			}
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || nx >= width {
					continue
				}
				j := ny*width + nx
				if class[j] == classWeak && pix[j] == edgeOff {
					pix[j] = edgeOn
					stack = append(stack, j)
				}
			}
		}
	}
}

// clamp constrains an integer value to the range [min, max]
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
