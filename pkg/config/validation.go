package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration against its struct tags and any
// cross-field rules not expressible as tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	for i, ep := range cfg.Endpoints {
		if ep.Kind == "nfc-dep" && ep.NFCID3 == "" {
			return fmt.Errorf("endpoints[%d]: nfc-dep endpoint requires nfcid3", i)
		}
	}

	return nil
}
