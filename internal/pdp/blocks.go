package pdp

import (
	"regexp"
	"strings"
)

// BlockKind enumerates the page blocks the extractor understands.
type BlockKind uint8

const (
	BlockNone BlockKind = iota
	// BlockLabels holds the promotion labels rendered for one product.
	BlockLabels
	// BlockTileList holds the horizontal "meer met korting" promotion tiles.
	BlockTileList
	// BlockBundleGroup holds the bundle / multipack options of a product.
	BlockBundleGroup
	// BlockRichText is a markdown text fragment.
	BlockRichText
	// BlockPrice is a price fragment in minor currency units.
	BlockPrice
)

// Block id prefixes. The labels prefix is suffixed with the product id.
const (
	labelsPrefix  = "product-page-labels-"
	tilesPrefix   = "product-page-promo-tiles"
	bundlesPrefix = "product-page-bundles"
)

var colorMarkup = regexp.MustCompile(`#\([^)]+\)`)

// Block is a located top-level block of the page.
type Block struct {
	Kind BlockKind
	ID   string
	node *Node
}

// Children returns the block's direct child entries.
func (b Block) Children() []*Node {
	return b.node.Get("children").Items()
}

// Node returns the block's underlying node.
func (b Block) Node() *Node {
	return b.node
}

// Block locates the first block of the given kind. productID is only used by
// BlockLabels, whose id embeds the product it belongs to.
func (d *Document) Block(kind BlockKind, productID string) (Block, bool) {
	if d == nil || d.Root == nil {
		return Block{}, false
	}

	var prefix string
	switch kind {
	case BlockLabels:
		if productID == "" {
			return Block{}, false
		}
		prefix = labelsPrefix + productID
	case BlockTileList:
		prefix = tilesPrefix
	case BlockBundleGroup:
		prefix = bundlesPrefix
	default:
		return Block{}, false
	}

	n := d.Root.FindByIDPrefix(prefix)
	if n == nil {
		return Block{}, false
	}
	return Block{Kind: kind, ID: n.ID(), node: n}, true
}

// fragment is a leaf-level piece of rendered content.
type fragment struct {
	kind  BlockKind
	text  string
	price int
}

// fragmentOf classifies an object node as a rich text or price fragment. Nodes
// that do not fit either shape are skipped.
func fragmentOf(n *Node) (fragment, bool) {
	if n == nil || n.Kind != KindObject {
		return fragment{}, false
	}
	switch n.Text("type") {
	case "RICH_TEXT":
		if md, ok := n.Get("markdown").Str(); ok {
			return fragment{kind: BlockRichText, text: cleanMarkdown(md)}, true
		}
	case "PRICE":
		if p, ok := n.Get("price").Int(); ok {
			return fragment{kind: BlockPrice, price: p}, true
		}
	}
	return fragment{}, false
}

// Collected is everything the collector gathers below a node.
type Collected struct {
	Texts              []string
	Price              int
	HasPrice           bool
	AccessibilityLabel string
}

// Collect walks n and gathers cleaned rich texts in document order, the last
// price fragment and the last accessibility label mentioning a euro amount.
func Collect(n *Node) Collected {
	var c Collected
	n.Walk(func(cur *Node) bool {
		if f, ok := fragmentOf(cur); ok {
			switch f.kind {
			case BlockRichText:
				c.Texts = append(c.Texts, f.text)
			case BlockPrice:
				c.Price, c.HasPrice = f.price, true
			}
		}
		if label, ok := cur.Get("accessibilityLabel").Str(); ok && strings.Contains(label, "€") {
			c.AccessibilityLabel = label
		}
		return true
	})
	return c
}

func cleanMarkdown(md string) string {
	return strings.TrimSpace(colorMarkup.ReplaceAllString(md, ""))
}
