package pagination

const (
	// DefaultPageSize is used when a request does not ask for a size.
	DefaultPageSize = 20
	defaultMaxSize  = 100
)

// Options configures pagination behavior.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

type Option func(*Options)

func WithMaxPageSize(maxSize int) Option {
	return func(o *Options) {
		o.MaxPageSize = maxSize
	}
}

func WithDefaultPageSize(size int) Option {
	return func(o *Options) {
		o.DefaultPageSize = size
	}
}

func defaultOptions() Options {
	return Options{DefaultPageSize: DefaultPageSize, MaxPageSize: defaultMaxSize}
}
