package responder

import (
	"regexp"
	"strings"
)

// Unavailable replaces product links that point outside the validated set.
const Unavailable = "[Sản phẩm không có sẵn]"

var (
	// productRefPattern finds every product path, relative or absolute.
	productRefPattern = regexp.MustCompile(`(?:https?://[^\s()\[\]<>"]*?)?/product/([^\s()\[\]<>"?#]+)`)

	// productLinkPattern matches a whole markdown link to a product. Labels
	// may contain one level of nested brackets.
	productLinkPattern = regexp.MustCompile(`\[(?:[^\[\]]|\[[^\[\]]*\])*\]\(\s*(?:https?://[^\s()]*?)?/product/([^\s()"?#]+)[^()]*\)`)
)

// Ground replaces every product reference whose id is not in allowed with
// Unavailable. Markdown links are replaced whole; any other product path is
// replaced on its own. It returns the corrected text and the number of
// references replaced.
func Ground(text string, allowed map[string]bool) (string, int) {
	rejected := 0
	replace := func(pattern *regexp.Regexp) func(string) string {
		return func(ref string) string {
			m := pattern.FindStringSubmatch(ref)
			if len(m) == 2 && allowed[productID(m[1])] {
				return ref
			}
			rejected++
			return Unavailable
		}
	}
	out := productLinkPattern.ReplaceAllStringFunc(text, replace(productLinkPattern))
	out = productRefPattern.ReplaceAllStringFunc(out, replace(productRefPattern))
	return out, rejected
}

// linkedIDs returns the product ids referenced from text, in order of
// appearance.
func linkedIDs(text string) []string {
	var ids []string
	for _, m := range productRefPattern.FindAllStringSubmatch(text, -1) {
		ids = append(ids, productID(m[1]))
	}
	return ids
}

// productID strips sentence punctuation trailing a bare product path.
func productID(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), ".,;:!'")
}
