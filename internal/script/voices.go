package script

import "sort"

// Voice describes one entry of the fixed speaker catalog.
type Voice struct {
	Name   string `json:"name"`
	Engine string `json:"engine_voice"`
}

// catalog is the finite set of speaker names the parser recognizes.
// Each maps to a prebuilt voice on the speech engine.
var catalog = map[string]string{
	"Aoede":  "Aoede",
	"Charon": "Charon",
	"Fenrir": "Fenrir",
	"Kore":   "Kore",
	"Leda":   "Leda",
	"Orus":   "Orus",
	"Puck":   "Puck",
	"Zephyr": "Zephyr",
}

// KnownVoice reports whether name is part of the catalog.
func KnownVoice(name string) bool {
	_, ok := catalog[name]
	return ok
}

// EngineVoice returns the engine voice id for a catalog speaker name.
// The empty string means the name is not in the catalog.
func EngineVoice(name string) string {
	return catalog[name]
}

// Voices lists the catalog in stable name order.
func Voices() []Voice {
	out := make([]Voice, 0, len(catalog))
	for name, engine := range catalog {
		out = append(out, Voice{Name: name, Engine: engine})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
