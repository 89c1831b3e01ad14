package doctor

import (
	"context"

	"github.com/hay-kot/formrelay/internal/core/config"
)

// AssetSource is the subset of the asset store a StaticCheck needs.
type AssetSource interface {
	Exists(name string) bool
}

// StaticCheck verifies that every routed file and the not-found page exist.
type StaticCheck struct {
	static config.StaticConfig
	assets AssetSource
}

// NewStaticCheck creates a static asset check.
func NewStaticCheck(static config.StaticConfig, assets AssetSource) *StaticCheck {
	return &StaticCheck{static: static, assets: assets}
}

func (c *StaticCheck) Name() string {
	return "Static Assets"
}

func (c *StaticCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	source := "embedded"
	if c.static.Dir != "" {
		source = c.static.Dir
	}

	for _, route := range c.static.Routes {
		if c.assets.Exists(route.File) {
			result.pass(route.Path, route.File)
		} else {
			result.fail(route.Path, route.File+" not found in "+source)
		}
	}

	if c.assets.Exists(c.static.NotFound) {
		result.pass("not found page", c.static.NotFound)
	} else {
		result.warn("not found page", c.static.NotFound+" not found in "+source+", a plain 404 will be sent")
	}

	return result
}
