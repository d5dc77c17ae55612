package quirks

import "strings"

// Template is a heuristic classification of a page's generating stack,
// used to seed an extraction approach when no learned pattern exists yet.
type Template string

const (
	TemplateShopify   Template = "shopify"
	TemplateNextJS    Template = "nextjs_ssr"
	TemplateGraphQL   Template = "graphql_backed"
	TemplatePlainHTML Template = "plain_html"
)

// DetectTemplate inspects the raw HTML body for fingerprints of common
// generating stacks. Checks run most-specific first.
func DetectTemplate(html string) Template {
	lower := strings.ToLower(html)

	switch {
	case strings.Contains(lower, "cdn.shopify.com") || strings.Contains(lower, "shopify.theme"):
		return TemplateShopify
	case strings.Contains(lower, "__next_data__") || strings.Contains(lower, "/_next/static"):
		return TemplateNextJS
	case strings.Contains(lower, "graphql") && strings.Contains(lower, "apollo"):
		return TemplateGraphQL
	default:
		return TemplatePlainHTML
	}
}
