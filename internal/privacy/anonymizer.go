package privacy

import (
	"sort"
	"strings"
)

// Anonymize substitutes detections in text. Candidates are applied in
// ascending start order and any candidate intersecting an already applied
// span is skipped. It returns the rewritten text and the indices of the
// applied detections in their original order. An operator error aborts the
// call.
func Anonymize(text string, detections []Detection, op Operator) (string, []int, error) {
	order := make([]int, len(detections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return detections[order[a]].Start < detections[order[b]].Start
	})

	var out strings.Builder
	out.Grow(len(text))
	applied := make([]int, 0, len(detections))
	cursor := 0

	for _, idx := range order {
		d := detections[idx]
		if d.Start < cursor || d.Start < 0 || d.End > len(text) || d.End <= d.Start {
			continue
		}

		replacement, err := op(d, text[d.Start:d.End])
		if err != nil {
			return "", nil, err
		}

		out.WriteString(text[cursor:d.Start])
		out.WriteString(replacement)
		cursor = d.End
		applied = append(applied, idx)
	}
	out.WriteString(text[cursor:])

	sort.Ints(applied)
	return out.String(), applied, nil
}
