// Package persona provides the catalog of AI personas available to a
// session. Each persona is a named system-prompt configuration shaping the
// model's voice and source preferences.
//
// The catalog is immutable configuration data. Lookup never fails: unknown
// or empty keys fall back to the generalist.
package persona

// DefaultKey is the persona used when lookup fails.
const DefaultKey = "generalist"

// Persona is one named system-prompt configuration.
type Persona struct {
	Key          string
	Name         string
	Description  string
	SystemPrompt string
}

// catalog holds the built-in personas in presentation order.
var catalog = []Persona{
	{
		Key:          "generalist",
		Name:         "Sefaria Explorer",
		Description:  "General-purpose AI assistant for Jewish text exploration",
		SystemPrompt: generalistPrompt,
	},
	{
		Key:          "ashkenazi",
		Name:         "Rabbi Ashkenazi",
		Description:  "Orthodox Rabbi with Ashkenazic tradition preference",
		SystemPrompt: ashkenaziPrompt,
	},
	{
		Key:          "sephardi",
		Name:         "Rabbi Sephardi",
		Description:  "Orthodox Rabbi with Sephardic tradition preference",
		SystemPrompt: sephardiPrompt,
	},
	{
		Key:          "halacha",
		Name:         "Halacha Scholar",
		Description:  "Specialist in Jewish law (Halacha) and its sources",
		SystemPrompt: halachaPrompt,
	},
	{
		Key:          "tanakh",
		Name:         "Tanakh Explorer",
		Description:  "Specialist in finding and explaining sources in the Tanakh",
		SystemPrompt: tanakhPrompt,
	},
}

// Get looks up a persona by key, falling back to the generalist for unknown
// or empty keys. It never fails.
func Get(key string) Persona {
	for _, p := range catalog {
		if p.Key == key {
			return p
		}
	}
	return Get(DefaultKey)
}

// List returns all personas in presentation order. The returned slice is a
// copy; mutating it does not affect the catalog.
func List() []Persona {
	out := make([]Persona, len(catalog))
	copy(out, catalog)
	return out
}
