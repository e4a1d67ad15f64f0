package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://distrowatch.com/table.php", "distrowatch.com"},
		{"standard https", "https://DistroWatch.com/path", "distrowatch.com"},
		{"no scheme", "distrowatch.com/path", "distrowatch.com"},
		{"host with port", "localhost:8080", "localhost"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchTotal == nil || crawlCandidatesTotal == nil || cacheOperationsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(crawlCandidatesTotal.WithLabelValues("ok"))
	ObserveCandidate("ok")
	if got := testutil.ToFloat64(crawlCandidatesTotal.WithLabelValues("ok")); got != before+1 {
		t.Errorf("expected candidate counter to grow by 1, got %f -> %f", before, got)
	}

	ObserveCrawlRun("completed", 42, 3*time.Second)
	if got := testutil.ToFloat64(crawlRecords); got != 42 {
		t.Errorf("expected records gauge 42, got %f", got)
	}

	beforeFail := testutil.ToFloat64(cacheOperationsTotal.WithLabelValues("write", "fail"))
	ObserveCacheOp("write", false)
	if got := testutil.ToFloat64(cacheOperationsTotal.WithLabelValues("write", "fail")); got != beforeFail+1 {
		t.Errorf("expected failed write counter to grow by 1, got %f", got)
	}

	SetCacheBackend("memory")
	SetCacheBackend("file")
	if got := testutil.ToFloat64(cacheBackend.WithLabelValues("file")); got != 1 {
		t.Errorf("expected file backend gauge 1, got %f", got)
	}
	if got := testutil.CollectAndCount(cacheBackend); got != 1 {
		t.Errorf("expected a single backend series, got %d", got)
	}

	beforeBytes := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("distrowatch.com"))
	ObserveFetch("https://distrowatch.com/table.php", "ok", 128)
	if got := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("distrowatch.com")); got != beforeBytes+128 {
		t.Errorf("expected bytes counter to grow by 128, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://distrowatch.com", "https://cachyos.org", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
