package supervised

import (
	"fmt"
	"sort"
)

// LabelEncoder maps label names to class indices in sorted order.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

func FitLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(labels))
	classes := make([]string, 0, 4)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

func (e *LabelEncoder) Encode(label string) (int, error) {
	idx := sort.SearchStrings(e.Classes, label)
	if idx < len(e.Classes) && e.Classes[idx] == label {
		return idx, nil
	}
	return -1, fmt.Errorf("label %q was not seen during training", label)
}

func (e *LabelEncoder) Decode(idx int) (string, error) {
	if idx < 0 || idx >= len(e.Classes) {
		return "", fmt.Errorf("class index %d out of range [0,%d)", idx, len(e.Classes))
	}
	return e.Classes[idx], nil
}

func (e *LabelEncoder) validate() error {
	if len(e.Classes) < 2 {
		return fmt.Errorf("label encoder has %d classes", len(e.Classes))
	}
	if !sort.StringsAreSorted(e.Classes) {
		return fmt.Errorf("label encoder classes are not sorted")
	}
	return nil
}
