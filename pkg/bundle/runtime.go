package bundle

import "github.com/nooga/weld/pkg/symbols"

// helpers holds the text of every runtime helper by name. A helper is only
// emitted when something in the bundle calls it.
var helpers = map[string]string{
	symbols.ExportAllHelper: `function ` + symbols.ExportAllHelper + `(getters) {
  const ns = Object.create(null);
  for (const key in getters) {
    Object.defineProperty(ns, key, { enumerable: true, get: getters[key] });
  }
  Object.defineProperty(ns, Symbol.toStringTag, { value: "Module" });
  return Object.freeze(ns);
}
`,
}
