package config

import (
	"github.com/go-playground/validator/v10"
)

// structValidator is shared across every ParsePipeline call; validator.Validate
// caches struct reflection per type internally, so one package-level instance
// is the documented usage pattern.
var structValidator = validator.New()
