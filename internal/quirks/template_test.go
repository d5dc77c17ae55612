package quirks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTemplate_RecognizesKnownStacks(t *testing.T) {
	cases := []struct {
		name string
		html string
		want Template
	}{
		{"shopify by cdn", `<script src="https://cdn.shopify.com/s/files/app.js"></script>`, TemplateShopify},
		{"shopify by theme marker", `<body class="shopify.theme">`, TemplateShopify},
		{"nextjs by data blob", `<script id="__NEXT_DATA__">{}</script>`, TemplateNextJS},
		{"nextjs by static path", `<script src="/_next/static/chunk.js"></script>`, TemplateNextJS},
		{"graphql backed", `<!-- apollo client cache --><script>graphql query</script>`, TemplateGraphQL},
		{"plain html", `<html><body><p>hello</p></body></html>`, TemplatePlainHTML},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectTemplate(tc.html))
		})
	}
}

func TestDetectTemplate_ShopifyChecksRunBeforeNextJS(t *testing.T) {
	html := `<script src="https://cdn.shopify.com/app.js"></script><script src="/_next/static/x.js"></script>`

	assert.Equal(t, TemplateShopify, DetectTemplate(html))
}

func TestDetectTemplate_GraphQLRequiresBothMarkers(t *testing.T) {
	assert.Equal(t, TemplatePlainHTML, DetectTemplate(`<p>graphql mentioned but no apollo here</p>`))
}
