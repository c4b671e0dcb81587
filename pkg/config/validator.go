package config

import (
	"github.com/compozy/bookstore/engine/book"
	"github.com/go-playground/validator/v10"
)

var sslModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("read_strategy", validateReadStrategy); err != nil {
		return err
	}
	return v.RegisterValidation("sslmode", validateSSLMode)
}

func validateReadStrategy(fl validator.FieldLevel) bool {
	_, err := book.ParseReadStrategy(fl.Field().String())
	return err == nil
}

func validateSSLMode(fl validator.FieldLevel) bool {
	_, ok := sslModes[fl.Field().String()]
	return ok
}
