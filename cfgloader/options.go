package cfgloader

// Options holds configuration options for Load.
type Options struct {
	// Silent disables printing of the loaded config when set to true.
	Silent bool

	// ConfigDir is the directory holding the per environment yaml files.
	ConfigDir string
}

// Option is a functional option for configuring Load behavior.
type Option func(*Options)

// WithSilent disables config logging.
func WithSilent() Option {
	return func(o *Options) {
		o.Silent = true
	}
}

// WithConfigDir overrides the default ./config directory.
func WithConfigDir(dir string) Option {
	return func(o *Options) {
		o.ConfigDir = dir
	}
}
