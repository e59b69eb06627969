package search

// extractVector pulls a single embedding vector out of whichever shape the
// embedding tool returned. Known shapes, probed in order:
//
//	[[0.1, ...], ...]                  bare array of vectors
//	{"embeddings": [[0.1, ...], ...]}
//	{"data": [{"embedding": [...]}]}   or {"data": [{"vector": [...]}]}
//	{"embedding": [...]}               or {"vector": [...]}
//
// Returns nil when no vector is recognizable.
func extractVector(payload any) []float64 {
	switch v := payload.(type) {
	case nil:
		return nil
	case []any:
		if len(v) == 0 {
			return nil
		}
		return toVector(v[0])
	case map[string]any:
		if embeddings, ok := v["embeddings"].([]any); ok && len(embeddings) > 0 {
			return toVector(embeddings[0])
		}
		if data, ok := v["data"].([]any); ok && len(data) > 0 {
			if first, ok := data[0].(map[string]any); ok {
				if vec := toVector(first["embedding"]); vec != nil {
					return vec
				}
				return toVector(first["vector"])
			}
			return nil
		}
		if vec := toVector(v["embedding"]); vec != nil {
			return vec
		}
		return toVector(v["vector"])
	}
	return nil
}

// toVector converts a decoded JSON array into a float vector. Anything that
// is not a non-empty numeric array yields nil.
func toVector(value any) []float64 {
	raw, ok := value.([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	vec := make([]float64, 0, len(raw))
	for _, entry := range raw {
		n, ok := entry.(float64)
		if !ok {
			return nil
		}
		vec = append(vec, n)
	}
	return vec
}
