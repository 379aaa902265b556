package pdp

import (
	"regexp"
	"strings"
)

// PromoSibling is a product shown in a PDP's promotion tiles, i.e. another product
// taking part in the same promotion.
type PromoSibling struct {
	PicnicID    string `json:"picnic_id"`
	Name        string `json:"name"`
	ImageID     string `json:"image_id"`
	Price       int    `json:"price"`
	PromotionID string `json:"promotion_id"`
	PromoLabel  string `json:"promo_label"`
}

// BundleOption is one pack size offered on a PDP.
type BundleOption struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageID      string `json:"image_id"`
	Price        int    `json:"price"`
	UnitQuantity string `json:"unit_quantity"`
	PromoLabel   string `json:"promo_label,omitempty"`
}

// CartQuantityPhrases are the store's phrasings for "N of this product are in your
// order". That text is rendered through the same label block as real promotions.
var CartQuantityPhrases = []string{"in bestelling", "in order"}

var (
	tileID = regexp.MustCompile(`^selling-unit-([A-Za-z0-9_]+)-tile$`)

	promoKeyword = regexp.MustCompile(`(?i)bespaar|korting`)
	volume       = regexp.MustCompile(`(?i)\d[\d,.]*\s*(?:liter|l|ml|gram|gr|g|kg|stuks?|st)\b`)
	unitPrice    = regexp.MustCompile(`€[\d.,]+/\w+`)
	multiplier   = regexp.MustCompile(`^\d+$`)
)

// IsCartQuantityText reports whether s is cart state echoed through a label block.
func IsCartQuantityText(s string) bool {
	lower := strings.ToLower(strings.Join(strings.Fields(s), " "))
	for _, phrase := range CartQuantityPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ExtractSelfPromoLabel returns the promotion label the PDP shows for productID
// itself. Cart quantity texts are never returned.
func ExtractSelfPromoLabel(doc *Document, productID string) (string, bool) {
	block, ok := doc.Block(BlockLabels, productID)
	if !ok {
		return "", false
	}

	for _, text := range Collect(block.Node()).Texts {
		if text == "" || IsCartQuantityText(text) {
			continue
		}
		return text, true
	}
	return "", false
}

// ExtractPromoSiblings returns the products listed in the PDP's promotion tiles.
// Tiles without a recognisable product id, or carrying neither a promotion id nor
// a label, are skipped.
func ExtractPromoSiblings(doc *Document) []PromoSibling {
	block, ok := doc.Block(BlockTileList, "")
	if !ok {
		return nil
	}

	var out []PromoSibling
	for _, tile := range block.Children() {
		if s, ok := siblingFromTile(tile); ok {
			out = append(out, s)
		}
	}
	return out
}

func siblingFromTile(tile *Node) (PromoSibling, bool) {
	m := tileID.FindStringSubmatch(tile.ID())
	if m == nil {
		return PromoSibling{}, false
	}

	promo := promotionContext(tile)
	promotionID := promo.Text("promotion_id")
	label := cleanMarkdown(firstText(promo, "label", "promotion_label", "promo_label"))
	if promotionID == "" && label == "" {
		return PromoSibling{}, false
	}

	summary := tile.FindField("sellingUnit")
	price, ok := promo.Get("price").Int()
	if !ok {
		price, _ = parseDisplayPrice(summary.Get("display_price"))
	}

	return PromoSibling{
		PicnicID:    m[1],
		Name:        summary.Text("name"),
		ImageID:     summary.Text("image_id"),
		Price:       price,
		PromotionID: promotionID,
		PromoLabel:  label,
	}, true
}

// promotionContext returns the data of the first analytics context below n whose
// schema names a promotion.
func promotionContext(n *Node) *Node {
	ctx := n.Find(func(c *Node) bool {
		schema, ok := c.Get("schema").Str()
		if !ok || !strings.Contains(strings.ToLower(schema), "promotion") {
			return false
		}
		data := c.Get("data")
		return data != nil && data.Kind == KindObject
	})
	return ctx.Get("data")
}

// ExtractBundles returns the bundle options of the PDP.
func ExtractBundles(doc *Document) []BundleOption {
	block, ok := doc.Block(BlockBundleGroup, "")
	if !ok {
		return nil
	}

	var out []BundleOption
	for _, child := range block.Children() {
		su := child.Get("child", "content", "sellingUnit")
		id := su.Text("id")
		if id == "" {
			continue
		}

		collected := Collect(child)
		var vol, perUnit, mult, promoLabel string
		for _, md := range collected.Texts {
			switch {
			case promoKeyword.MatchString(md):
				promoLabel = md
			case volume.MatchString(md):
				vol = md
			case unitPrice.MatchString(md):
				perUnit = md
			case multiplier.MatchString(md):
				mult = md
			}
		}

		out = append(out, BundleOption{
			ID:           id,
			Name:         su.Text("name"),
			ImageID:      su.Text("image_id"),
			Price:        collected.Price,
			UnitQuantity: bundleDisplay(mult, vol, perUnit),
			PromoLabel:   promoLabel,
		})
	}
	return out
}

// bundleDisplay builds "4x · €1.86/l" when a multiplier is present and
// "1,5 liter · €1.93/l" otherwise.
func bundleDisplay(mult, vol, perUnit string) string {
	if mult != "" {
		if perUnit != "" {
			return mult + "x · " + perUnit
		}
		return mult + "x"
	}

	var parts []string
	for _, p := range []string{vol, perUnit} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " · ")
}

func firstText(n *Node, keys ...string) string {
	for _, k := range keys {
		if s := n.Text(k); s != "" {
			return s
		}
	}
	return ""
}
