package tokenstore

type (
	Config struct {
		Slot string
	}
	Option func(*Config)
)

func DefaultConfig() *Config {
	return &Config{Slot: DefaultSlot}
}

func WithSlot(slot string) Option {
	return func(c *Config) {
		if slot != "" {
			c.Slot = slot
		}
	}
}
