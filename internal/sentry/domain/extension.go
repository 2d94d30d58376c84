package domain

import "fmt"

// ExtensionEntry maps a trusted domain suffix (e.g. ".ac.in") to a descriptive label.
type ExtensionEntry struct {
	Suffix string `yaml:"suffix" json:"suffix"`
	Label  string `yaml:"label" json:"label"`
}

// String renders the entry the way it is shown to users: ".com → Global".
func (e ExtensionEntry) String() string {
	return fmt.Sprintf("%s → %s", e.Suffix, e.Label)
}
