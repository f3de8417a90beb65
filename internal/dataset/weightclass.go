package dataset

import "fmt"

// maleBrackets and femaleBrackets are the IPF IWF-style weight-class
// upper bounds, reproduced bit-exactly from
// _examples/original_source/src/scoring.rs's calculate_weight_class_expr.
var maleBrackets = []float64{59, 66, 74, 83, 93, 105, 120}
var femaleBrackets = []float64{47, 52, 57, 63, 69, 76, 84}

// weightClassFor derives the canonical weight-class label for a
// bodyweight and sex, e.g. "74kg" or "120kg+" for the open-ended top
// bracket.
func weightClassFor(sex byte, bodyweightKg float64) string {
	brackets := maleBrackets
	if sex == 'F' {
		brackets = femaleBrackets
	}
	for _, b := range brackets {
		if bodyweightKg <= b {
			return fmt.Sprintf("%gkg", b)
		}
	}
	top := brackets[len(brackets)-1]
	return fmt.Sprintf("%gkg+", top)
}

// NormalizeWeightClassLabel converts a dropdown value into the canonical
// label used by both engines (spec.md §4.3, §4.5): "X" -> "Xkg",
// "X+" -> "Xkg+". "All" and "" pass through unchanged as sentinels for
// "no filter".
func NormalizeWeightClassLabel(v string) string {
	if v == "" || v == "All" {
		return v
	}
	if n := len(v); n > 0 && v[n-1] == '+' {
		return v[:n-1] + "kg+"
	}
	return v + "kg"
}
