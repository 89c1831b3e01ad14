package doctor

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/formrelay/internal/core/config"
)

// ConfigCheck validates the effective configuration.
type ConfigCheck struct {
	config *config.Config
}

// NewConfigCheck creates a new configuration check.
func NewConfigCheck(cfg *config.Config) *ConfigCheck {
	return &ConfigCheck{config: cfg}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.fail("Config loaded", "configuration not loaded")
		return result
	}

	err := c.config.Validate()
	warnings := c.config.Warnings()

	if err == nil && len(warnings) == 0 {
		result.pass("Config valid", "")
		return result
	}

	if err != nil {
		var fieldErrs criterio.FieldErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				label := fe.Field
				if label == "" {
					label = "validation"
				}
				result.fail(label, fe.Err.Error())
			}
		} else {
			result.fail("validation", err.Error())
		}
	}

	for _, w := range warnings {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.warn(label, w.Message)
	}

	return result
}
