package gpures

// MaxAttachIndex is the highest color attachment index a framebuffer
// object accepts.
const MaxAttachIndex = 15

// DefaultMultisampleSamples is the sample count used for multisampled
// framebuffer objects when WithMultisampleSamples is not given.
const DefaultMultisampleSamples = 4

// Option configures a Renderer during creation.
//
// Example:
//
//	stats := gpures.NewStatistics(gpures.StatsConfig{MaxMemoryMB: 512})
//	r, err := gpures.NewRenderer(nil, gpures.WithStats(stats))
type Option func(*options)

type options struct {
	stats          Stats
	statsConfig    StatsConfig
	samples        int
	maxAttachIndex int
	workers        int
}

func defaultOptions() options {
	return options{samples: DefaultMultisampleSamples, maxAttachIndex: MaxAttachIndex}
}

// WithStats routes resource accounting to s. By default the renderer
// creates its own Statistics.
func WithStats(s Stats) Option {
	return func(o *options) {
		o.stats = s
	}
}

// WithStatsConfig configures the default Statistics. It is ignored when
// WithStats is given.
func WithStatsConfig(cfg StatsConfig) Option {
	return func(o *options) {
		o.statsConfig = cfg
	}
}

// WithMultisampleSamples sets the sample count of multisampled framebuffer
// objects. Values below 2 disable multisampling. The device maximum still
// applies.
func WithMultisampleSamples(n int) Option {
	return func(o *options) {
		o.samples = n
	}
}

// WithMaxAttachIndex lowers the highest color attachment index SwitchTarget
// uses. Larger indices are clamped. The device limit still applies.
func WithMaxAttachIndex(n int) Option {
	return func(o *options) {
		o.maxAttachIndex = min(max(n, 0), MaxAttachIndex)
	}
}

// WithWorkers bounds the goroutines used to derive missing mip levels on
// the CPU. Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
