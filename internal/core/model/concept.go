package model

// Concept is a named entity with a definition. Name is the unique key.
type Concept struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// Names returns the concept names in catalog order.
func Names(concepts []Concept) []string {
	out := make([]string, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, c.Name)
	}
	return out
}

// Index builds a name -> definition lookup.
func Index(concepts []Concept) map[string]string {
	out := make(map[string]string, len(concepts))
	for _, c := range concepts {
		out[c.Name] = c.Definition
	}
	return out
}
