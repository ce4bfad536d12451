package credential

import "fmt"

type WarningKind string

const (
	WarningExtraction    WarningKind = "EXTRACTION"
	WarningEmptySecret   WarningKind = "EMPTY_SECRET"
	WarningAmbiguity     WarningKind = "RECONCILIATION_AMBIGUITY"
	WarningSourceFailure WarningKind = "SOURCE_FAILURE"
)

// Warning is a non-fatal finding of a sync pass. Suspect marks warnings that
// come from an unexpected failure inside a rule rather than from bad input.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Rule     string      `json:"rule,omitempty"`
	Hostname string      `json:"hostname,omitempty"`
	Message  string      `json:"message"`
	Suspect  bool        `json:"suspect,omitempty"`
}

func (w Warning) String() string {
	s := string(w.Kind)
	if w.Rule != "" {
		s += " [" + w.Rule + "]"
	}
	if w.Hostname != "" {
		s += " " + w.Hostname
	}
	s = fmt.Sprintf("%s: %s", s, w.Message)
	if w.Suspect {
		s += " (suspect)"
	}
	return s
}
