package syntax

import "strings"

// StyleDepKind tags a dependency found in a style module.
type StyleDepKind int

const (
	StyleImport StyleDepKind = iota // @import "x.css"
	StyleURL                        // url(x.png)
)

func (k StyleDepKind) String() string {
	switch k {
	case StyleImport:
		return "import"
	case StyleURL:
		return "url"
	default:
		return "unknown"
	}
}

// StyleDep is one dependency of a style module.
type StyleDep struct {
	Kind      StyleDepKind
	Specifier string
	Node      *Node // import_statement for @import; the url() call otherwise
	Value     *Node // Node holding the specifier text
}

// extractStyleDeps collects @import rules and url() references.
func extractStyleDeps(root *Node, src string) []*StyleDep {
	var deps []*StyleDep
	Inspect(root, func(n *Node) bool {
		switch n.Type {
		case "import_statement":
			if value, spec := styleImportTarget(n, src); value != nil && isLocalURL(spec) {
				deps = append(deps, &StyleDep{Kind: StyleImport, Specifier: spec, Node: n, Value: value})
			}
			return false
		case "call_expression":
			if value, spec := urlArgument(n, src); value != nil && isLocalURL(spec) {
				deps = append(deps, &StyleDep{Kind: StyleURL, Specifier: spec, Node: n, Value: value})
			}
			return false
		}
		return true
	})
	return deps
}

func styleImportTarget(stmt *Node, src string) (*Node, string) {
	for _, c := range stmt.NamedChildren() {
		switch c.Type {
		case "string_value":
			return c, Unquote(c.Text(src))
		case "call_expression":
			return urlArgument(c, src)
		}
	}
	return nil, ""
}

func urlArgument(call *Node, src string) (*Node, string) {
	fn := call.ChildOfType("function_name")
	if fn == nil || !strings.EqualFold(fn.Text(src), "url") {
		return nil, ""
	}
	args := call.ChildOfType("arguments")
	for _, a := range args.NamedChildren() {
		if a.Type == "string_value" {
			return a, Unquote(a.Text(src))
		}
		return a, strings.TrimSpace(a.Text(src))
	}
	return nil, ""
}

// isLocalURL filters out references the bundler never resolves.
func isLocalURL(spec string) bool {
	if spec == "" || strings.HasPrefix(spec, "#") || strings.HasPrefix(spec, "//") {
		return false
	}
	lower := strings.ToLower(spec)
	for _, scheme := range []string{"data:", "http:", "https:", "blob:"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}
