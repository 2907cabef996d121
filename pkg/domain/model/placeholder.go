package model

import "regexp"

// placeholderRe matches ${matrix.NAME}, ${event.FIELD} and ${run.id}
// references. Any other ${...} or $VAR form is left untouched for the
// shell to resolve.
var placeholderRe = regexp.MustCompile(`\$\{(matrix|event|run)\.([A-Za-z0-9_][A-Za-z0-9_-]*)\}`)

// ExpandPlaceholders substitutes drover placeholder references with values
// from vars, keyed like "matrix.python" or "event.tag". References that
// are missing from vars become empty strings; Validate rejects them at
// load time, so that only happens for pipelines built by hand.
func ExpandPlaceholders(s string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		return vars[sub[1]+"."+sub[2]]
	})
}

// collectPlaceholders returns every drover placeholder reference in s in
// "prefix.name" form.
func collectPlaceholders(s string) []string {
	var refs []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		refs = append(refs, m[1]+"."+m[2])
	}
	return refs
}
