package classifier

import "regexp"

// Predicate names one exemption rule.
type Predicate string

const (
	PredicateNonGet          Predicate = "non_get"
	PredicateBot             Predicate = "bot"
	PredicateLogin           Predicate = "login"
	PredicateAPI             Predicate = "api"
	PredicateCoreAsset       Predicate = "core_asset"
	PredicateAuthenticated   Predicate = "authenticated"
	PredicateAdminContext    Predicate = "admin_context"
	PredicateWebhook         Predicate = "webhook"
	PredicateCommercePage    Predicate = "commerce_page"
	PredicateContentPage     Predicate = "content_page"
	PredicateCommerceSession Predicate = "commerce_session"
)

// Match is the outcome of one predicate for one request.
type Match struct {
	Predicate Predicate `json:"predicate"`
	Matched   bool      `json:"matched"`
}

// Surfaces holds the string markers the path, user-agent and cookie
// predicates look for. Paths and user agents are lower-cased before matching,
// so markers must be lower case.
type Surfaces struct {
	BotTokens             []string
	LoginMarkers          []string
	APIMarkers            []string
	CoreAssetPattern      *regexp.Regexp
	WebhookMarkers        []string
	CommercePathMarkers   []string
	ContentPathMarkers    []string
	ContentPathPattern    *regexp.Regexp
	CommerceCookieMarkers []string
}

var (
	coreAssetPattern    = regexp.MustCompile(`/(wp-content|wp-includes|wp-admin|wp-json)|/xmlrpc\.php|/robots\.txt|/sitemap\.xml|/feed`)
	datedContentPattern = regexp.MustCompile(`/\d{4}/\d{2}/`)
)

// DefaultSurfaces returns the markers for a WordPress + WooCommerce storefront.
func DefaultSurfaces() Surfaces {
	return Surfaces{
		BotTokens: []string{
			"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider", "yandexbot",
			"facebookexternalhit", "twitterbot",
			"bot", "crawler", "spider", "robot", "crawling",
			"lighthouse", "pagespeed", "gtmetrix", "pingdom", "uptime", "monitor", "check",
		},
		LoginMarkers:        []string{"wp-login.php", "wp-admin"},
		APIMarkers:          []string{"/wp-json/", "admin-ajax.php"},
		CoreAssetPattern:    coreAssetPattern,
		WebhookMarkers:      []string{"/webhook", "/wc-api/", "/wp-json/wc/", "/wc-webhook/"},
		CommercePathMarkers: []string{"/cart", "/checkout", "/my-account", "/shop"},
		ContentPathMarkers:  []string{"/blog"},
		ContentPathPattern:  datedContentPattern,
		CommerceCookieMarkers: []string{
			"woocommerce_cart_hash",
			"woocommerce_items_in_cart",
			"wp_woocommerce_session_",
		},
	}
}
