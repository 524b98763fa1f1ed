package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// configValidate is the validator instance for configuration structs.
// Initialized in init() with custom validators.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("duration", validateDuration)
}

// validateDuration accepts empty strings and anything time.ParseDuration accepts.
func validateDuration(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := time.ParseDuration(value)
	return err == nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
