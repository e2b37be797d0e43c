package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	clientID string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithClientID overrides the configured client identifier.
func WithClientID(id string) Option {
	return func(a *application) {
		a.clientID = id
	}
}
