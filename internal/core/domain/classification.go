package domain

import (
	"math"
	"strings"
)

type Label string

const (
	LabelInvoice        Label = "invoice"
	LabelBankStatement  Label = "bank_statement"
	LabelDriversLicense Label = "drivers_license"
	LabelUnknown        Label = "unknown"
)

// KnownLabels lists the classifiable labels in filename-matching priority order.
func KnownLabels() []Label {
	return []Label{LabelDriversLicense, LabelBankStatement, LabelInvoice}
}

// ParseLabel maps a label name to a known label. The British spelling used by
// older training sets is accepted for driver's licenses.
func ParseLabel(raw string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LabelInvoice):
		return LabelInvoice, true
	case string(LabelBankStatement):
		return LabelBankStatement, true
	case string(LabelDriversLicense), "drivers_licence":
		return LabelDriversLicense, true
	case string(LabelUnknown):
		return LabelUnknown, true
	default:
		return LabelUnknown, false
	}
}

type SignalSource string

const (
	SourceFilename   SignalSource = "filename"
	SourceSupervised SignalSource = "content-supervised"
	SourceSemantic   SignalSource = "content-semantic"
)

type Signal struct {
	Source     SignalSource `json:"source"`
	Label      Label        `json:"label"`
	Confidence float64      `json:"confidence"`
}

func UnknownSignal(source SignalSource) Signal {
	return Signal{Source: source, Label: LabelUnknown, Confidence: 0}
}

// Normalized clamps confidence into [0,1]; NaN becomes 0.
func (s Signal) Normalized() Signal {
	s.Confidence = ClampConfidence(s.Confidence)
	if s.Label == "" {
		s.Label = LabelUnknown
	}
	return s
}

func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type Method string

const (
	MethodContent  Method = "content"
	MethodFilename Method = "filename"
	MethodError    Method = "error"
)

type ClassificationResult struct {
	Filename   string   `json:"filename"`
	Label      Label    `json:"predicted_class"`
	Confidence float64  `json:"confidence"`
	Method     Method   `json:"method"`
	Signals    []Signal `json:"signals,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func ErrorResult(filename, message string) ClassificationResult {
	return ClassificationResult{
		Filename:   filename,
		Label:      LabelUnknown,
		Confidence: 0,
		Method:     MethodError,
		Error:      message,
	}
}

func (r ClassificationResult) Failed() bool {
	return r.Method == MethodError
}
