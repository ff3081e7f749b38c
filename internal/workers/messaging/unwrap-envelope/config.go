// internal/workers/messaging/unwrap-envelope/config.go
package unwrapenvelope

// Mode selects how envelopes are unwrapped.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeParser Mode = "parser"
	ModeModel  Mode = "model"
)

type Config struct {
	Mode Mode
}

func LoadConfig() *Config {
	return &Config{
		Mode: ModeAuto,
	}
}
