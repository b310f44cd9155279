package querycache

import "fmt"

type Kind string

const (
	KindTasks     Kind = "tasks"
	KindTask      Kind = "task"
	KindAnalytics Kind = "analytics"
)

type Group string

const (
	GroupTasks     Group = "tasks"
	GroupAnalytics Group = "analytics"
)

// Group reports the invalidation group a resource kind belongs to.
func (k Kind) Group() Group {
	switch k {
	case KindTasks, KindTask:
		return GroupTasks
	case KindAnalytics:
		return GroupAnalytics
	default:
		return Group(k)
	}
}

// Key identifies one cached resource. Params must already be canonical:
// equal parameter sets produce equal strings.
type Key struct {
	Kind   Kind
	Params string
}

func (k Key) String() string {
	if k.Params == "" {
		return string(k.Kind)
	}
	return fmt.Sprintf("%s?%s", k.Kind, k.Params)
}
