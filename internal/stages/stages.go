// Package stages names the pipeline stages.
package stages

import "fmt"

// Name identifies one independently invocable pipeline stage.
type Name string

const (
	Search   Name = "search"
	Analysis Name = "analysis"
	Report   Name = "report"
	Delivery Name = "delivery"
)

// All lists the stages in pipeline order.
func All() []Name {
	return []Name{Search, Analysis, Report, Delivery}
}

// Valid reports whether n is a known stage.
func (n Name) Valid() bool {
	switch n {
	case Search, Analysis, Report, Delivery:
		return true
	default:
		return false
	}
}

// Next returns the stage that follows n. Delivery is last.
func (n Name) Next() (Name, bool) {
	switch n {
	case Search:
		return Analysis, true
	case Analysis:
		return Report, true
	case Report:
		return Delivery, true
	default:
		return "", false
	}
}

// Parse validates a raw stage name.
func Parse(raw string) (Name, error) {
	n := Name(raw)
	if !n.Valid() {
		return "", fmt.Errorf("unknown stage %q", raw)
	}
	return n, nil
}
