package verifier

import (
	"context"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiobot/curio/internal/cache"
	"github.com/curiobot/curio/internal/models"
)

func newTestVerifier(extraTrusted ...string) *Verifier {
	lists := DomainLists{
		Trusted: append([]string{"trusted.example"}, extraTrusted...),
		Paywall: []string{"paywalled.example"},
	}
	return New(lists, nil)
}

func TestVerify_SearchFallbackShortCircuits(t *testing.T) {
	v := newTestVerifier()

	// No server is listening anywhere; a network call would fail.
	result := v.Verify(context.Background(), "https://www.google.com/search?q=the+republic+plato", "")

	assert.True(t, result.IsValid)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.True(t, result.IsSearchFallback)
}

func TestVerify_MalformedURL(t *testing.T) {
	v := newTestVerifier()

	result := v.Verify(context.Background(), "not a url", "")

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ConfidenceFailed, result.Confidence)
}

func TestVerify_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := newTestVerifier()
	result := v.Verify(context.Background(), srv.URL+"/missing", "")

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Equal(t, http.StatusNotFound, result.Status)
}

func TestVerify_ForbiddenIsPaywall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	v := newTestVerifier()
	result := v.Verify(context.Background(), srv.URL+"/article", "")

	assert.True(t, result.IsValid)
	assert.True(t, result.IsPaywall)
	assert.Equal(t, models.ConfidenceMedium, result.Confidence)
}

func TestVerify_PDFAcceptedFromProbe(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			sawGet = true
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := newTestVerifier()
	result := v.Verify(context.Background(), srv.URL+"/paper.pdf", "")

	assert.True(t, result.IsValid)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.False(t, sawGet, "PDF should be accepted from the HEAD probe")
}

func TestVerify_TrustedDomainAcceptedFromProbe(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			sawGet = true
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// httptest binds to 127.0.0.1, so trust that host for the test.
	v := newTestVerifier("127.0.0.1")
	result := v.Verify(context.Background(), srv.URL+"/essay", "")

	assert.True(t, result.IsValid)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.False(t, sawGet, "trusted 200 should be accepted from the HEAD probe")
}

func TestVerify_Soft404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>Sorry, this page not found.</body></html>"))
	}))
	defer srv.Close()

	v := newTestVerifier()
	result := v.Verify(context.Background(), srv.URL+"/gone", "")

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ConfidenceMedium, result.Confidence)
	assert.Equal(t, "soft 404 page", result.Reason)
}

func TestVerify_TitleConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><head><title>The Use of Knowledge in Society - Archive</title></head><body>` +
			longFiller() + `</body></html>`))
	}))
	defer srv.Close()

	v := newTestVerifier()
	result := v.Verify(context.Background(), srv.URL+"/essay", "The Use of Knowledge in Society")

	assert.True(t, result.IsValid)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Equal(t, "title confirmed", result.Reason)
}

func TestVerify_TitleMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><head><title>Quarterly Earnings Report</title></head><body>` +
			longFiller() + `</body></html>`))
	}))
	defer srv.Close()

	v := newTestVerifier()
	result := v.Verify(context.Background(), srv.URL+"/essay", "Meditations on First Philosophy")

	assert.True(t, result.IsValid)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.Equal(t, "title mismatch", result.Reason)
}

func TestVerify_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := srv.URL
	srv.Close()

	v := newTestVerifier()
	result := v.Verify(context.Background(), deadURL, "")

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
}

func TestVerify_FailureOnTrustedDomainStaysValid(t *testing.T) {
	v := newTestVerifier()

	result := v.classifyFailure(assertErr{}, "www.trusted.example")

	assert.True(t, result.IsValid)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.Equal(t, "verification blocked but domain is known-good", result.Reason)
}

type assertErr struct{}

func (assertErr) Error() string { return "blocked by bot protection" }

func TestClassifyFailure_UnresolvableDomainIsDead(t *testing.T) {
	v := newTestVerifier()

	err := &net.DNSError{Err: "no such host", Name: "ghost.example", IsNotFound: true}
	result := v.classifyFailure(err, "ghost.example")

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Equal(t, "domain does not resolve", result.Reason)
}

func TestClassifyFailure_TimeoutStaysTentative(t *testing.T) {
	v := newTestVerifier()

	// A slow site might still serve the article to a real browser.
	result := v.classifyFailure(timeoutErr{}, "slow.example")

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.Equal(t, "timed out", result.Reason)
}

func TestClassifyFailure_CertificateErrorKeepsLink(t *testing.T) {
	v := newTestVerifier()

	result := v.classifyFailure(x509.UnknownAuthorityError{}, "selfsigned.example")

	assert.True(t, result.IsValid)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.Equal(t, "certificate error", result.Reason)

	result = v.classifyFailure(x509.HostnameError{Certificate: &x509.Certificate{}, Host: "selfsigned.example"}, "selfsigned.example")
	assert.True(t, result.IsValid)
	assert.Equal(t, "certificate error", result.Reason)
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "context deadline exceeded" }

func (timeoutErr) Timeout() bool { return true }

func (timeoutErr) Temporary() bool { return true }

func TestVerify_CachedResultSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	results := cache.New(time.Minute)
	defer results.Close()

	v := New(DomainLists{}, results)

	first := v.Verify(context.Background(), srv.URL+"/x", "")
	callsAfterFirst := calls
	second := v.Verify(context.Background(), srv.URL+"/x", "")

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, calls, "second verify must hit the cache")
}

func TestFindFirstValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(longFiller()))
	}))
	defer srv.Close()

	v := newTestVerifier()
	match := v.FindFirstValid(context.Background(), []Candidate{
		{URL: srv.URL + "/bad"},
		{URL: srv.URL + "/good"},
	})

	require.NotNil(t, match)
	assert.Equal(t, srv.URL+"/good", match.URL)
	assert.True(t, match.Result.IsValid)
}

func TestFindFirstValid_NoneValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := newTestVerifier()
	match := v.FindFirstValid(context.Background(), []Candidate{
		{URL: srv.URL + "/a"},
		{URL: srv.URL + "/b"},
	})

	assert.Nil(t, match)
}

func TestIsSearchFallbackURL(t *testing.T) {
	cases := map[string]bool{
		"https://www.google.com/search?q=plato": true,
		"https://duckduckgo.com/?q=hayek+essay": true,
		"https://www.bing.com/search?q=keynes":  true,
		"https://www.theatlantic.com/archive/":  false,
		"https://google.com/maps":               false,
		"https://searchenginewatch.com/article": false,
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, IsSearchFallbackURL(u), raw)
	}
}

func TestTitleOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, titleOverlap("The Use of Knowledge in Society", "the use of knowledge in society"), 0.001)
	assert.Equal(t, 0.0, titleOverlap("Meditations on First Philosophy", "quarterly earnings report"))

	// Short words are ignored entirely.
	assert.Empty(t, keywords("a an of to"))
}

func TestDomainLists_Matching(t *testing.T) {
	lists := DefaultDomainLists()

	assert.True(t, lists.IsTrusted("www.archive.org"))
	assert.True(t, lists.IsTrusted("web.archive.org"))
	assert.True(t, lists.IsPaywall("nytimes.com"))
	assert.False(t, lists.IsTrusted("archive.org.evil.example"))
}

// longFiller pads response bodies past the soft-404 scan threshold.
func longFiller() string {
	filler := make([]byte, 4096)
	for i := range filler {
		filler[i] = 'x'
	}
	return string(filler)
}
