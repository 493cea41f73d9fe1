package model

// CheckItem is an outcome of one connectivity or permission probe.
type CheckItem struct {
	Name    string         `json:"name"`
	OK      bool           `json:"ok"`
	Skipped bool           `json:"skipped,omitempty"`
	Error   string         `json:"error,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

type CheckReport struct {
	Items []*CheckItem `json:"items"`
}

func (x *CheckReport) Add(item *CheckItem) {
	x.Items = append(x.Items, item)
}

// OK returns true if no probe failed. Skipped probes are not failures.
func (x *CheckReport) OK() bool {
	for _, item := range x.Items {
		if !item.OK && !item.Skipped {
			return false
		}
	}
	return true
}
