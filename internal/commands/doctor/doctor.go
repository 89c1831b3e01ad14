// Package doctor runs health checks over a formrelay installation: its
// configuration, its record document and its static assets.
package doctor

import "context"

// Status is the outcome of a single check item. It marshals as its string
// value.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckItem is one line of a check result.
type CheckItem struct {
	Label  string `json:"label"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Result groups the items reported by one check.
type Result struct {
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

func (r *Result) add(status Status, label, detail string) {
	r.Items = append(r.Items, CheckItem{Label: label, Status: status, Detail: detail})
}

func (r *Result) pass(label, detail string) { r.add(StatusPass, label, detail) }
func (r *Result) warn(label, detail string) { r.add(StatusWarn, label, detail) }
func (r *Result) fail(label, detail string) { r.add(StatusFail, label, detail) }

// Check is a single diagnostic.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll runs checks in order. A cancelled context stops before the next
// check.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check.Run(ctx))
	}
	return results
}

// Summary counts items by status across results.
func Summary(results []Result) (passed, warned, failed int) {
	for _, r := range results {
		for _, item := range r.Items {
			switch item.Status {
			case StatusPass:
				passed++
			case StatusWarn:
				warned++
			case StatusFail:
				failed++
			}
		}
	}
	return passed, warned, failed
}
