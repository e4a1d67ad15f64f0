package ranking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", "popularity.html"))
	require.NoError(t, err)
	return body
}

func TestParsePicksMonthlySection(t *testing.T) {
	t.Parallel()

	res := Parse(loadFixture(t), 0)
	require.Equal(t, catalog.OutcomeOK, res.Outcome)
	require.NoError(t, res.Err)
	assert.Equal(t, []catalog.Candidate{
		{Rank: 1, ID: "cachyos", Name: "CachyOS", HitsPerDay: 4342},
		{Rank: 2, ID: "mint", Name: "Mint", HitsPerDay: 2398},
		{Rank: 4, ID: "endeavour", Name: "EndeavourOS", HitsPerDay: 1511},
		{Rank: 5, ID: "debian", Name: "Debian", HitsPerDay: 1305},
	}, res.Candidates)
	// section title, column header and the MX row missing its hits cell
	assert.Equal(t, 3, res.Skipped)
}

func TestParseRespectsLimit(t *testing.T) {
	t.Parallel()

	res := Parse(loadFixture(t), 2)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "mint", res.Candidates[1].ID)
}

func TestParseKeepsFirstRowPerIdentifier(t *testing.T) {
	t.Parallel()

	page := `<table>
<tr><th class="Invert" colspan="3">Last 1 month</th></tr>
<tr><th class="phr1">1</th><td class="phr2"><a href="mint">Mint</a></td><td class="phr3">2,398</td></tr>
<tr><th class="phr1">2</th><td class="phr2"><a href="table.php?distribution=Mint">Linux Mint</a></td><td class="phr3">1,900</td></tr>
<tr><th class="phr1">3</th><td class="phr2"><a href="debian">Debian</a></td><td class="phr3">1,305</td></tr>
</table>`
	res := Parse([]byte(page), 10)
	require.Equal(t, catalog.OutcomeOK, res.Outcome)
	assert.Equal(t, []catalog.Candidate{
		{Rank: 1, ID: "mint", Name: "Mint", HitsPerDay: 2398},
		{Rank: 3, ID: "debian", Name: "Debian", HitsPerDay: 1305},
	}, res.Candidates)
	// section title and the repeated mint row
	assert.Equal(t, 2, res.Skipped)
}

func TestParseMissingSectionIsEmpty(t *testing.T) {
	t.Parallel()

	res := Parse([]byte(`<table><tr><th class="Invert">Last 12 months</th></tr></table>`), 10)
	assert.Equal(t, catalog.OutcomeEmpty, res.Outcome)
	require.ErrorIs(t, res.Err, ErrSectionMissing)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)
}

func TestIdentifierFromHref(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"cachyos":                      "cachyos",
		"table.php?distribution=MX":    "mx",
		"https://distrowatch.com/arch": "arch",
		"/ubuntu/":                     "ubuntu",
		"":                             "",
		"/":                            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, IdentifierFromHref(in), "href %q", in)
	}
}

func TestFetchReturnsEmptyOnSourceFailure(t *testing.T) {
	t.Parallel()

	f := New("", &stubFetcher{err: errors.New("connection refused")}, zap.NewNop())
	got := f.Fetch(context.Background(), 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchParsesDocument(t *testing.T) {
	t.Parallel()

	stub := &stubFetcher{body: loadFixture(t)}
	f := New("https://example.test/popularity", stub, zap.NewNop())
	got := f.Fetch(context.Background(), 1)
	require.Len(t, got, 1)
	assert.Equal(t, "cachyos", got[0].ID)
	assert.Equal(t, "https://example.test/popularity", stub.lastURL)
}

type stubFetcher struct {
	body    []byte
	err     error
	lastURL string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (catalog.Document, error) {
	s.lastURL = url
	if s.err != nil {
		return catalog.Document{}, s.err
	}
	return catalog.Document{URL: url, StatusCode: 200, Body: s.body}, nil
}
