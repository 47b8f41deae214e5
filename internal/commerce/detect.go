package commerce

// detector inspects decrypted credentials and reports whether its platform
// is configured. Detectors are pure functions; priority comes from slice
// order alone.
type detector struct {
	kind  Kind
	match func(Credentials) bool
}

// detectors is the priority-ordered closed platform set. Shopify wins over
// WooCommerce when a tenant somehow carries both credential sets.
var detectors = []detector{
	{
		kind: KindShopify,
		match: func(c Credentials) bool {
			return c.ShopifyDomain != "" && c.ShopifyAccessToken != ""
		},
	},
	{
		kind: KindWooCommerce,
		match: func(c Credentials) bool {
			return c.WooCommerceURL != "" && c.WooConsumerKey != "" && c.WooConsumerSecret != ""
		},
	},
}

// Detect returns the platform kind for the given credentials, KindNone when
// nothing matches.
func Detect(creds Credentials) Kind {
	for _, d := range detectors {
		if d.match(creds) {
			return d.kind
		}
	}
	return KindNone
}
