// Package bundle concatenates linked modules into the files of an
// artifact: one script, one stylesheet, a markup shell and the resources
// the modules reference.
package bundle

import "path"

// Output is one emitted file.
type Output struct {
	ID      string
	Content []byte
}

// Artifact is the result of one build.
type Artifact struct {
	Script    Output
	Style     Output
	Markup    Output
	Resources []Output // Resource modules and, in production mode, source maps
}

// Resource returns the resource with the given id.
func (a *Artifact) Resource(id string) (Output, bool) {
	for _, r := range a.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Output{}, false
}

// Files returns every output of the artifact that has content.
func (a *Artifact) Files() []Output {
	var out []Output
	for _, o := range []Output{a.Script, a.Style, a.Markup} {
		if len(o.Content) > 0 {
			out = append(out, o)
		}
	}
	return append(out, a.Resources...)
}

// Mode selects how source maps are delivered.
type Mode int

const (
	Development Mode = iota // Inline data-URL map comments
	Production              // Sibling .map resources
)

func (m Mode) String() string {
	switch m {
	case Development:
		return "development"
	case Production:
		return "production"
	default:
		return "unknown"
	}
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "development", "dev", "":
		return Development, true
	case "production", "prod":
		return Production, true
	}
	return Development, false
}

// mapID names the source map of an output.
func mapID(id string) string {
	return id + ".map"
}

// mapURL is the reference written into an output, relative to it.
func mapURL(id string) string {
	return path.Base(mapID(id))
}
