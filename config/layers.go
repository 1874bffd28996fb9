package config

// MergeLayers composes settings mappings ordered from strongest to weakest.
// Keys set in a stronger layer win; nested mappings merge key by key and
// lists are taken whole from the strongest layer that sets them. Inputs are
// never modified.
func MergeLayers(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return nil
	}
	merged := cloneMap(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeMap(layers[i], merged)
	}
	return merged
}

func mergeMap(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return cloneMap(weak)
	}
	out := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		out[key] = cloneValue(value)
	}
	for key, value := range strong {
		if nested, ok := value.(map[string]any); ok {
			if existing, ok := out[key].(map[string]any); ok {
				out[key] = mergeMap(nested, existing)
				continue
			}
		}
		out[key] = cloneValue(value)
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneMap(value)
	case []any:
		out := make([]any, len(value))
		for i := range value {
			out[i] = cloneValue(value[i])
		}
		return out
	default:
		return v
	}
}
