package verifier

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/curiobot/curio/internal/cache"
	"github.com/curiobot/curio/internal/models"
)

const (
	probeTimeout = 6 * time.Second
	fetchTimeout = 10 * time.Second

	maxBodyBytes = 500 * 1024
	// Bodies shorter than this are suspect enough to scan for
	// soft-404 phrasing; real articles are longer.
	shortBodyBytes = 2048

	// Minimum keyword overlap between the expected title and the
	// fetched page title to count as a confirmation.
	titleOverlapThreshold = 0.3
)

// Verifier classifies candidate URLs as deliverable or not. Verification
// never hard-fails a recommendation flow: every outcome is a
// VerificationResult with a confidence tier.
type Verifier struct {
	client  *http.Client
	domains DomainLists
	cache   *cache.Cache
}

// Candidate is a URL with an optional expected page title used for the
// hallucination check.
type Candidate struct {
	URL   string
	Title string
}

// New builds a verifier with the given domain lists. A nil cache
// disables result caching.
func New(domains DomainLists, results *cache.Cache) *Verifier {
	return &Verifier{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		domains: domains,
		cache:   results,
	}
}

// Verify runs the two-tier check against a single URL. expectedTitle
// may be empty.
func (v *Verifier) Verify(ctx context.Context, rawURL, expectedTitle string) models.VerificationResult {
	if v.cache != nil {
		if cached, ok := v.cache.Get(rawURL); ok {
			return cached
		}
	}

	result := v.verify(ctx, rawURL, expectedTitle)

	if v.cache != nil {
		v.cache.Set(rawURL, result)
	}
	return result
}

func (v *Verifier) verify(ctx context.Context, rawURL, expectedTitle string) models.VerificationResult {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceFailed,
			Reason:     "malformed URL",
		}
	}

	// Search-fallback links are a deliberate degraded state, not a
	// broken link. No network call.
	if IsSearchFallbackURL(parsed) {
		return models.VerificationResult{
			IsValid:          true,
			Confidence:       models.ConfidenceLow,
			IsSearchFallback: true,
			Reason:           "search fallback link",
		}
	}

	host := parsed.Hostname()
	if result, done := v.probe(ctx, rawURL, host); done {
		return result
	}
	return v.fullFetch(ctx, rawURL, host, expectedTitle)
}

// probe is the cheap first tier: a HEAD with a short timeout. It only
// concludes on unambiguous positives; everything else defers to the
// full fetch.
func (v *Verifier) probe(ctx context.Context, rawURL, host string) (models.VerificationResult, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return models.VerificationResult{}, false
	}
	setBrowserHeaders(req)

	resp, err := v.client.Do(req)
	if err != nil {
		return models.VerificationResult{}, false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 400
	if !ok {
		return models.VerificationResult{}, false
	}

	// A PDF response is the article itself regardless of domain trust.
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/pdf") {
		return models.VerificationResult{
			IsValid:    true,
			Confidence: models.ConfidenceHigh,
			Status:     resp.StatusCode,
			Reason:     "direct PDF",
		}, true
	}

	if v.domains.IsTrusted(host) {
		return models.VerificationResult{
			IsValid:    true,
			Confidence: models.ConfidenceHigh,
			Status:     resp.StatusCode,
			Reason:     "trusted domain",
		}, true
	}
	if v.domains.IsPaywall(host) {
		return models.VerificationResult{
			IsValid:    true,
			Confidence: models.ConfidenceMedium,
			Status:     resp.StatusCode,
			IsPaywall:  true,
			Reason:     "known paywalled domain",
		}, true
	}

	return models.VerificationResult{}, false
}

func (v *Verifier) fullFetch(ctx context.Context, rawURL, host, expectedTitle string) models.VerificationResult {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceFailed,
			Reason:     fmt.Sprintf("building request: %v", err),
		}
	}
	setBrowserHeaders(req)

	resp, err := v.client.Do(req)
	if err != nil {
		return v.classifyFailure(err, host)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceHigh,
			Status:     resp.StatusCode,
			Reason:     "page not found",
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The page exists, we just can't read it.
		return models.VerificationResult{
			IsValid:    true,
			Confidence: models.ConfidenceMedium,
			Status:     resp.StatusCode,
			IsPaywall:  true,
			Reason:     "access restricted",
		}
	case resp.StatusCode >= 400:
		if v.domains.IsTrusted(host) || v.domains.IsPaywall(host) {
			return models.VerificationResult{
				IsValid:    true,
				Confidence: models.ConfidenceLow,
				Status:     resp.StatusCode,
				IsPaywall:  v.domains.IsPaywall(host),
				Reason:     "verification blocked but domain is known-good",
			}
		}
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceMedium,
			Status:     resp.StatusCode,
			Reason:     fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		body = nil
	}

	// Soft 404: a 200 whose thin body is an error page in disguise.
	if len(body) > 0 && len(body) < shortBodyBytes && containsSoft404(body) {
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceMedium,
			Status:     resp.StatusCode,
			Reason:     "soft 404 page",
		}
	}

	result := models.VerificationResult{
		IsValid:    true,
		Confidence: models.ConfidenceMedium,
		Status:     resp.StatusCode,
		IsPaywall:  v.domains.IsPaywall(host),
	}
	if v.domains.IsTrusted(host) {
		result.Confidence = models.ConfidenceHigh
	}

	pageTitle := extractTitle(body, rawURL)
	result.Title = pageTitle

	if expectedTitle != "" && pageTitle != "" {
		overlap := titleOverlap(expectedTitle, pageTitle)
		switch {
		case overlap >= titleOverlapThreshold:
			result.Confidence = models.ConfidenceHigh
			result.Reason = "title confirmed"
		case overlap == 0 && len(keywords(expectedTitle)) > 1:
			// The URL resolves but likely points at the wrong
			// article; the model may have hallucinated the citation.
			result.Confidence = models.ConfidenceLow
			result.Reason = "title mismatch"
		}
	}

	return result
}

// classifyFailure maps transport errors onto verdicts. The known-good
// domain bias trades false positives for not discarding real links
// hidden behind anti-bot defenses.
func (v *Verifier) classifyFailure(err error, host string) models.VerificationResult {
	if v.domains.IsTrusted(host) || v.domains.IsPaywall(host) {
		return models.VerificationResult{
			IsValid:    true,
			Confidence: models.ConfidenceLow,
			IsPaywall:  v.domains.IsPaywall(host),
			Reason:     "verification blocked but domain is known-good",
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceHigh,
			Reason:     "domain does not resolve",
		}
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostnameErr) {
		// The site answered; only the certificate is off.
		return models.VerificationResult{
			IsValid:    true,
			Confidence: models.ConfidenceLow,
			Reason:     "certificate error",
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceLow,
			Reason:     "timed out",
		}
	}

	if strings.Contains(err.Error(), "connection refused") {
		return models.VerificationResult{
			IsValid:    false,
			Confidence: models.ConfidenceHigh,
			Reason:     "connection refused",
		}
	}

	return models.VerificationResult{
		IsValid:    false,
		Confidence: models.ConfidenceLow,
		Reason:     fmt.Sprintf("request failed: %v", err),
	}
}

// Match is a candidate that passed verification.
type Match struct {
	Candidate
	Result models.VerificationResult
}

// FindFirstValid checks candidates in order and returns the first one
// whose verification is valid. Failures are logged and skipped; a nil
// return means no candidate verified.
func (v *Verifier) FindFirstValid(ctx context.Context, candidates []Candidate) *Match {
	for _, c := range candidates {
		result := v.Verify(ctx, c.URL, c.Title)
		if result.IsValid {
			return &Match{Candidate: c, Result: result}
		}
		slog.Debug("candidate failed verification",
			"url", c.URL,
			"confidence", result.Confidence,
			"reason", result.Reason,
		)
	}
	return nil
}

var searchHosts = []string{
	"google.com",
	"bing.com",
	"duckduckgo.com",
	"search.brave.com",
}

// IsSearchFallbackURL reports whether u is a generic web-search query
// link rather than a direct article link.
func IsSearchFallbackURL(u *url.URL) bool {
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	for _, sh := range searchHosts {
		if host != sh && !strings.HasSuffix(host, "."+sh) {
			continue
		}
		if u.Query().Get("q") != "" || strings.Contains(u.Path, "search") {
			return true
		}
	}
	return false
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

var soft404Patterns = []string{
	"page not found",
	"404 not found",
	"no longer available",
	"article not found",
	"does not exist",
	"has been removed",
	"content unavailable",
}

func containsSoft404(body []byte) bool {
	text := strings.ToLower(string(body))
	for _, pattern := range soft404Patterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

var titleTagRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// extractTitle pulls the page title out of a fetched body, preferring
// readability's parse and falling back to the raw <title> tag.
func extractTitle(body []byte, pageURL string) string {
	if len(body) == 0 {
		return ""
	}

	parsed, err := url.Parse(pageURL)
	if err == nil {
		article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
		if err == nil && article.Title != "" {
			return strings.TrimSpace(article.Title)
		}
	}

	if m := titleTagRe.FindSubmatch(body); m != nil {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9\s]+`)

// keywords normalizes a title to its significant words: lower-cased,
// punctuation stripped, words longer than 3 characters.
func keywords(title string) []string {
	normalized := nonWordRe.ReplaceAllString(strings.ToLower(title), " ")
	var words []string
	for _, w := range strings.Fields(normalized) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// titleOverlap scores how many of the expected title's keywords appear
// in the fetched title, as a fraction of the expected keywords.
func titleOverlap(expected, actual string) float64 {
	expectedWords := keywords(expected)
	if len(expectedWords) == 0 {
		return 0
	}

	actualSet := make(map[string]struct{})
	for _, w := range keywords(actual) {
		actualSet[w] = struct{}{}
	}

	matched := 0
	for _, w := range expectedWords {
		if _, ok := actualSet[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(expectedWords))
}
