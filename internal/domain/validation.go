package domain

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks p against its struct tags.
func (p AnalysisParams) Validate() error {
	if err := validatorInstance().Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
	}
	return nil
}

// Validate checks the simulation input against its struct tags.
func (in SimulationInput) Validate() error {
	if err := validatorInstance().Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
	}
	return nil
}
