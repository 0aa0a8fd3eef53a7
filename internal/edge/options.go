package edge

const (
	DefaultLowThreshold  = 100
	DefaultHighThreshold = 200
)

// Options configures a single edge detection run
type Options struct {
	// Hysteresis thresholds on gradient magnitude. If LowThreshold is
	// greater than HighThreshold the two are swapped before use.
	LowThreshold  int
	HighThreshold int

	// L2Gradient selects sqrt(dx²+dy²) instead of |dx|+|dy|
	L2Gradient bool

	// BlurRadius applies a Gaussian pre-blur when > 0
	BlurRadius float64
}

// DefaultOptions returns the thresholds used when a request omits them
func DefaultOptions() Options {
	return Options{
		LowThreshold:  DefaultLowThreshold,
		HighThreshold: DefaultHighThreshold,
	}
}

// WithThresholds returns options with the given hysteresis thresholds
func (opts Options) WithThresholds(low, high int) Options {
	opts.LowThreshold = low
	opts.HighThreshold = high
	return opts
}

// WithL2Gradient toggles the euclidean gradient norm
func (opts Options) WithL2Gradient(enabled bool) Options {
	opts.L2Gradient = enabled
	return opts
}

// WithBlur sets the Gaussian pre-blur radius
func (opts Options) WithBlur(radius float64) Options {
	opts.BlurRadius = radius
	return opts
}

// ordered returns the thresholds as (low, high) with low <= high
func (opts Options) ordered() (float64, float64) {
	low, high := float64(opts.LowThreshold), float64(opts.HighThreshold)
	if low > high {
		low, high = high, low
	}
	return low, high
}
