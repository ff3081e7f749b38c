// internal/workers/geocoding/extract-location-query/config.go
package extractlocationquery

import (
	unwrapenvelope "geoquery-worker/internal/workers/messaging/unwrap-envelope"
)

type Config struct {
	// EnvelopeMode decides whether stage 1 may read the content with the
	// deterministic decoder instead of prompting.
	EnvelopeMode unwrapenvelope.Mode
	MaxWords     int
}

func LoadConfig() *Config {
	return &Config{
		EnvelopeMode: unwrapenvelope.ModeAuto,
		MaxWords:     defaultMaxLocationWords,
	}
}
