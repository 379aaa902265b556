package pdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePDP mimics the relevant parts of a product detail page: the label block
// for s100, a promotion tile list and a bundle block, buried in layout wrappers.
const samplePDP = `{
  "id": "product-details-page-root",
  "body": {
    "child": {
      "children": [
        {
          "id": "product-page-labels-s100",
          "type": "BLOCK",
          "children": [
            {"type": "RICH_TEXT", "markdown": "#(#333333)2 in bestelling#(#333333)"},
            {"type": "RICH_TEXT", "markdown": "   "},
            {"type": "RICH_TEXT", "markdown": "#(#E6261A)2e halve prijs"},
            {"type": "RICH_TEXT", "markdown": "1+1 gratis"}
          ]
        },
        {
          "id": "product-page-promo-tiles-horizontal",
          "children": [
            {
              "id": "selling-unit-s200-tile",
              "analytics": {
                "contexts": [
                  {"schema": "iglu:tech.picnic/product/jsonschema/1-0-0", "data": {"id": "s200"}},
                  {"schema": "iglu:tech.picnic/promotion/jsonschema/1-0-0",
                   "data": {"promotion_id": "P1", "label": "2e halve prijs", "price": 249}}
                ]
              },
              "content": {"sellingUnit": {"id": "s200", "name": "Pindakaas", "image_id": "img200", "display_price": "299"}}
            },
            {
              "id": "selling-unit-s300-tile",
              "analytics": {
                "contexts": [
                  {"schema": "iglu:tech.picnic/promotion/jsonschema/1-0-0",
                   "data": {"promotion_id": "P1", "label": "#(#E6261A)2e halve prijs"}}
                ]
              },
              "content": {"sellingUnit": {"id": "s300", "name": "Hagelslag", "image_id": "img300", "display_price": "1,89"}}
            },
            {
              "id": "selling-unit-s400-tile",
              "analytics": {"contexts": [{"schema": "iglu:tech.picnic/product/jsonschema/1-0-0", "data": {"id": "s400"}}]},
              "content": {"sellingUnit": {"id": "s400", "name": "Jam"}}
            },
            {
              "id": "some-other-tile",
              "analytics": {"contexts": [{"schema": "promotion", "data": {"promotion_id": "P9"}}]}
            },
            "garbage",
            42
          ]
        },
        {
          "id": "product-page-bundles-s100",
          "children": [
            {
              "child": {"content": {"sellingUnit": {"id": "s100", "name": "Cola 1,5L", "image_id": "img100"}}},
              "pml": [
                {"type": "RICH_TEXT", "markdown": "1,5 liter"},
                {"type": "RICH_TEXT", "markdown": "€1.93/l"},
                {"type": "PRICE", "price": 289}
              ]
            },
            {
              "child": {"content": {"sellingUnit": {"id": "s101", "name": "Cola 4x1,5L", "image_id": "img101"}}},
              "pml": [
                {"type": "RICH_TEXT", "markdown": "4"},
                {"type": "RICH_TEXT", "markdown": "€1.86/l"},
                {"type": "RICH_TEXT", "markdown": "Bespaar 0,28"},
                {"type": "PRICE", "price": 1199},
                {"accessibilityLabel": "Prijs €11,16"},
                {"type": "PRICE", "price": 1116}
              ]
            },
            {"child": {"content": {"sellingUnit": {"name": "no id"}}}}
          ]
        }
      ]
    }
  }
}`

func mustParse(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	return doc
}

func TestParseKeepsDocumentOrder(t *testing.T) {
	doc := mustParse(t, `{"b": {"id": "x-second"}, "a": {"id": "x-first"}}`)

	// "b" is declared first, so it wins even though "a" sorts earlier.
	found := doc.Root.FindByIDPrefix("x-")
	require.NotNil(t, found)
	assert.Equal(t, "x-second", found.ID())
}

func TestParseRejectsBrokenJSON(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"id": [1, 2`))
	assert.Error(t, err)

	_, err = ParseBytes([]byte(strings.Repeat("[", maxDepth+2)))
	assert.Error(t, err)
}

func TestNodeAccessors(t *testing.T) {
	doc := mustParse(t, `{"a": {"b": {"c": "x", "n": 12.6, "i": 7}}, "list": [1, "two"]}`)

	assert.Equal(t, "x", doc.Root.Get("a", "b").Text("c"))
	assert.Nil(t, doc.Root.Get("a", "missing", "c"))
	assert.Nil(t, doc.Root.Get("list", "0"))

	n, ok := doc.Root.Get("a", "b", "n").Int()
	assert.True(t, ok)
	assert.Equal(t, 13, n)

	i, ok := doc.Root.Get("a", "b", "i").Int()
	assert.True(t, ok)
	assert.Equal(t, 7, i)

	_, ok = doc.Root.Get("a", "b", "c").Int()
	assert.False(t, ok)

	huge := mustParse(t, `{"big": 1e30, "small": -1e30}`)
	_, ok = huge.Root.Get("big").Int()
	assert.False(t, ok)
	_, ok = huge.Root.Get("small").Int()
	assert.False(t, ok)
	assert.Len(t, doc.Root.Get("list").Items(), 2)

	var nilNode *Node
	assert.Equal(t, "", nilNode.Text("x"))
	assert.Nil(t, nilNode.Items())
}

func TestCollect(t *testing.T) {
	doc := mustParse(t, samplePDP)
	block, ok := doc.Block(BlockBundleGroup, "")
	require.True(t, ok)

	c := Collect(block.Children()[1])
	assert.Equal(t, []string{"4", "€1.86/l", "Bespaar 0,28"}, c.Texts)
	assert.True(t, c.HasPrice)
	assert.Equal(t, 1116, c.Price, "last price wins")
	assert.Equal(t, "Prijs €11,16", c.AccessibilityLabel)
}

func TestExtractSelfPromoLabel(t *testing.T) {
	doc := mustParse(t, samplePDP)

	label, ok := ExtractSelfPromoLabel(doc, "s100")
	assert.True(t, ok)
	assert.Equal(t, "2e halve prijs", label)

	_, ok = ExtractSelfPromoLabel(doc, "s999")
	assert.False(t, ok)

	_, ok = ExtractSelfPromoLabel(nil, "s100")
	assert.False(t, ok)
}

func TestExtractSelfPromoLabelOnlyCartQuantity(t *testing.T) {
	doc := mustParse(t, `{"id": "product-page-labels-s1", "children": [
		{"type": "RICH_TEXT", "markdown": "1 in bestelling"},
		{"type": "RICH_TEXT", "markdown": "3 IN  ORDER"}
	]}`)

	label, ok := ExtractSelfPromoLabel(doc, "s1")
	assert.False(t, ok)
	assert.Empty(t, label)
}

func TestIsCartQuantityText(t *testing.T) {
	assert.True(t, IsCartQuantityText("2 in bestelling"))
	assert.True(t, IsCartQuantityText("2 In Bestelling"))
	assert.True(t, IsCartQuantityText("1 in\norder"))
	assert.False(t, IsCartQuantityText("2e halve prijs"))
	assert.False(t, IsCartQuantityText("25% korting"))
}

func TestExtractPromoSiblings(t *testing.T) {
	doc := mustParse(t, samplePDP)

	siblings := ExtractPromoSiblings(doc)
	require.Len(t, siblings, 2)

	assert.Equal(t, PromoSibling{
		PicnicID:    "s200",
		Name:        "Pindakaas",
		ImageID:     "img200",
		Price:       249,
		PromotionID: "P1",
		PromoLabel:  "2e halve prijs",
	}, siblings[0])

	// no analytics price, display price parsed as a decimal, label markup stripped
	assert.Equal(t, "s300", siblings[1].PicnicID)
	assert.Equal(t, 189, siblings[1].Price)
	assert.Equal(t, "2e halve prijs", siblings[1].PromoLabel)
}

func TestExtractPromoSiblingsMissingBlock(t *testing.T) {
	doc := mustParse(t, `{"id": "root", "children": []}`)
	assert.Empty(t, ExtractPromoSiblings(doc))
	assert.Empty(t, ExtractPromoSiblings(nil))
}

func TestExtractBundles(t *testing.T) {
	doc := mustParse(t, samplePDP)

	bundles := ExtractBundles(doc)
	require.Len(t, bundles, 2)

	assert.Equal(t, BundleOption{
		ID:           "s100",
		Name:         "Cola 1,5L",
		ImageID:      "img100",
		Price:        289,
		UnitQuantity: "1,5 liter · €1.93/l",
	}, bundles[0])

	assert.Equal(t, "s101", bundles[1].ID)
	assert.Equal(t, "4x · €1.86/l", bundles[1].UnitQuantity)
	assert.Equal(t, "Bespaar 0,28", bundles[1].PromoLabel)
	assert.Equal(t, 1116, bundles[1].Price)
}

func TestBundleDisplay(t *testing.T) {
	assert.Equal(t, "6x", bundleDisplay("6", "", ""))
	assert.Equal(t, "6x · €1.79/l", bundleDisplay("6", "1,5 liter", "€1.79/l"))
	assert.Equal(t, "500 gram", bundleDisplay("", "500 gram", ""))
	assert.Equal(t, "", bundleDisplay("", "", ""))
}

func TestParseDisplayPrice(t *testing.T) {
	doc := mustParse(t, `{"a": "199", "b": "€ 1,99", "c": 250, "d": "n/a", "e": "",
		"f": "€ 3", "g": "€ 3,00", "h": "€3", "i": "2.49", "j": 1e30, "k": "€ 1e30"}`)

	cases := map[string]struct {
		want int
		ok   bool
	}{
		"a": {199, true},
		"b": {199, true},
		"c": {250, true},
		"d": {0, false},
		"e": {0, false},
		// whole and decimal euro amounts agree
		"f": {300, true},
		"g": {300, true},
		"h": {300, true},
		"i": {249, true},
		"j": {0, false},
		"k": {0, false},
	}
	for key, tc := range cases {
		got, ok := parseDisplayPrice(doc.Root.Get(key))
		assert.Equal(t, tc.ok, ok, key)
		assert.Equal(t, tc.want, got, key)
	}
}
