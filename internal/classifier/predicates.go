package classifier

import (
	"net/http"
	"strings"

	"github.com/TimurManjosov/splitgate/internal/request"
)

// PredicateHandler evaluates one exemption rule.
// Every handler reads a missing signal as "not exempt": an unresolved page
// type or an absent cookie never trips a predicate on its own.
type PredicateHandler interface {
	Check(d *request.Descriptor, s *Surfaces, pathHints bool) bool
}

type checkFunc func(d *request.Descriptor, s *Surfaces, pathHints bool) bool

func (f checkFunc) Check(d *request.Descriptor, s *Surfaces, pathHints bool) bool {
	return f(d, s, pathHints)
}

type namedPredicate struct {
	name    Predicate
	handler PredicateHandler
}

// predicateOrder is the evaluation order. The cheap request-line checks run
// first; the result does not depend on order.
var predicateOrder = []namedPredicate{
	{PredicateNonGet, checkFunc(isNonGet)},
	{PredicateBot, checkFunc(isBot)},
	{PredicateLogin, checkFunc(isLogin)},
	{PredicateAPI, checkFunc(isAPI)},
	{PredicateCoreAsset, checkFunc(isCoreAsset)},
	{PredicateAuthenticated, checkFunc(isAuthenticated)},
	{PredicateAdminContext, checkFunc(isAdminContext)},
	{PredicateWebhook, checkFunc(isWebhook)},
	{PredicateCommercePage, checkFunc(isCommercePage)},
	{PredicateContentPage, checkFunc(isContentPage)},
	{PredicateCommerceSession, checkFunc(hasCommerceSession)},
}

// An empty method is what net/http uses for GET, so it is not exempt.
func isNonGet(d *request.Descriptor, _ *Surfaces, _ bool) bool {
	return d.Method != "" && !strings.EqualFold(d.Method, http.MethodGet)
}

// Empty user agent: false.
func isBot(d *request.Descriptor, s *Surfaces, _ bool) bool {
	if d.UserAgent == "" {
		return false
	}
	return containsAny(strings.ToLower(d.UserAgent), s.BotTokens)
}

func isLogin(d *request.Descriptor, s *Surfaces, _ bool) bool {
	return containsAny(lowerPath(d), s.LoginMarkers)
}

func isAPI(d *request.Descriptor, s *Surfaces, _ bool) bool {
	if d.IsREST || d.IsAsyncAction || d.IsXMLRPC {
		return true
	}
	return containsAny(lowerPath(d), s.APIMarkers)
}

func isCoreAsset(d *request.Descriptor, s *Surfaces, _ bool) bool {
	return s.CoreAssetPattern != nil && s.CoreAssetPattern.MatchString(lowerPath(d))
}

func isAuthenticated(d *request.Descriptor, _ *Surfaces, _ bool) bool {
	return d.IsAuthenticated
}

func isAdminContext(d *request.Descriptor, _ *Surfaces, _ bool) bool {
	return d.IsAdminContext
}

func isWebhook(d *request.Descriptor, s *Surfaces, _ bool) bool {
	return containsAny(lowerPath(d), s.WebhookMarkers)
}

// Unknown page type: false unless path hints match.
func isCommercePage(d *request.Descriptor, s *Surfaces, pathHints bool) bool {
	switch d.PageType {
	case request.PageCart, request.PageCheckout, request.PageAccount:
		return true
	}
	return pathHints && containsAny(lowerPath(d), s.CommercePathMarkers)
}

// Unknown page type: false unless path hints match.
func isContentPage(d *request.Descriptor, s *Surfaces, pathHints bool) bool {
	if d.PageType == request.PagePost {
		return true
	}
	if !pathHints {
		return false
	}
	p := lowerPath(d)
	if containsAny(p, s.ContentPathMarkers) {
		return true
	}
	return s.ContentPathPattern != nil && s.ContentPathPattern.MatchString(p)
}

// Cookie-name markers and the host's live cart are ORed.
func hasCommerceSession(d *request.Descriptor, s *Surfaces, _ bool) bool {
	if d.HasCommerceSession {
		return true
	}
	for name := range d.CookieNames {
		if containsAny(name, s.CommerceCookieMarkers) {
			return true
		}
	}
	return false
}

func lowerPath(d *request.Descriptor) string {
	return strings.ToLower(d.Path)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
