package domain

import "fmt"

// Condition is a single key/value match within a filter.
type Condition struct {
	// Key is the payload field to test.
	Key string

	// Match is the value the field must equal. Numeric values compare
	// loosely (int vs float64) to survive JSON round trips.
	Match any
}

// Filter is a metadata filter expression in the must/should/must_not shape
// both backends understand. It doubles as an in-process predicate: when a
// backend rejects a filter on an unindexed field, callers re-evaluate the
// same expression against scanned payloads with Matches.
type Filter struct {
	Must    []Condition
	Should  []Condition
	MustNot []Condition
}

// Empty reports whether the filter has no conditions at all.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.Must) == 0 && len(f.Should) == 0 && len(f.MustNot) == 0)
}

// Matches evaluates the filter against a point payload: every Must matches,
// no MustNot matches, and at least one Should matches when any are present.
func (f *Filter) Matches(payload map[string]any) bool {
	if f.Empty() {
		return true
	}
	for _, c := range f.Must {
		if !matchValue(payload[c.Key], c.Match) {
			return false
		}
	}
	for _, c := range f.MustNot {
		if matchValue(payload[c.Key], c.Match) {
			return false
		}
	}
	if len(f.Should) > 0 {
		ok := false
		for _, c := range f.Should {
			if matchValue(payload[c.Key], c.Match) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// ParseFilter builds a Filter from the loosely-typed map shape used at the
// tool-call boundary, e.g. {"must": [{"key": "language", "match": "go"}]}.
func ParseFilter(raw map[string]any) (*Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	f := &Filter{}
	for clause, v := range raw {
		conds, err := parseConditions(clause, v)
		if err != nil {
			return nil, err
		}
		switch clause {
		case "must":
			f.Must = conds
		case "should":
			f.Should = conds
		case "must_not":
			f.MustNot = conds
		default:
			return nil, fmt.Errorf("%w: unknown filter clause %q", ErrInvalidInput, clause)
		}
	}
	return f, nil
}

func parseConditions(clause string, v any) ([]Condition, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: filter clause %q must be an array", ErrInvalidInput, clause)
	}
	conds := make([]Condition, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: filter condition must be an object", ErrInvalidInput)
		}
		key, _ := m["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("%w: filter condition missing \"key\"", ErrInvalidInput)
		}
		match, present := m["match"]
		if !present {
			return nil, fmt.Errorf("%w: filter condition missing \"match\"", ErrInvalidInput)
		}
		// Accept both the shorthand {"match": v} and the backend's
		// {"match": {"value": v}} form.
		if mm, ok := match.(map[string]any); ok {
			if inner, present := mm["value"]; present {
				match = inner
			}
		}
		conds = append(conds, Condition{Key: key, Match: match})
	}
	return conds, nil
}

// matchValue compares a payload value against a condition value, tolerating
// the int/float64 mismatch introduced by JSON decoding.
func matchValue(have, want any) bool {
	if have == nil {
		return false
	}
	if have == want {
		return true
	}
	hf, hok := toFloat(have)
	wf, wok := toFloat(want)
	return hok && wok && hf == wf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
