package meshpipe

import "encoding/json"

// Step parameters arrive as map[string]any, typically decoded from JSON or
// YAML, so numeric values may be float64, int or json.Number depending on the
// decoder. These helpers flatten that variety.

func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

// vec3Param reads a 3-element numeric slice parameter.
func vec3Param(params map[string]any, key string, def [3]float64) [3]float64 {
	raw, ok := params[key].([]any)
	if !ok || len(raw) != 3 {
		return def
	}
	var out [3]float64
	for i, e := range raw {
		switch n := e.(type) {
		case float64:
			out[i] = n
		case int:
			out[i] = float64(n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return def
			}
			out[i] = f
		default:
			return def
		}
	}
	return out
}

// pointsParam reads a list of 3D points ([[x,y,z], ...]) parameter.
func pointsParam(params map[string]any, key string) [][3]float64 {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([][3]float64, 0, len(raw))
	for _, e := range raw {
		triple, ok := e.([]any)
		if !ok || len(triple) != 3 {
			return nil
		}
		var p [3]float64
		for i, c := range triple {
			switch n := c.(type) {
			case float64:
				p[i] = n
			case int:
				p[i] = float64(n)
			case json.Number:
				f, err := n.Float64()
				if err != nil {
					return nil
				}
				p[i] = f
			default:
				return nil
			}
		}
		out = append(out, p)
	}
	return out
}
