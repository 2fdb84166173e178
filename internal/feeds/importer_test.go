package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
	"github.com/roach88/huddle/internal/store"
	"github.com/roach88/huddle/internal/testutil"
)

const sampleICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//huddle//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:one\r\nDTSTART:20260302T090000Z\r\nDTEND:20260302T100000Z\r\nSUMMARY:Review\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:two\r\nDTSTART:20260310T090000Z\r\nDTEND:20260310T100000Z\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestImporter(t *testing.T) (*Importer, *availability.Cache) {
	t.Helper()
	clk := testutil.NewFrozenClock(at(7, 45))
	cache := availability.NewCache(store.NewMemory(), availability.WithClock(clk))
	return NewImporter(cache, WithClock(clk)), cache
}

func writeFeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.ics")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestImporter_Range(t *testing.T) {
	im, _ := newTestImporter(t)

	assert.Equal(t, interval.New(day, day.Add(DefaultHorizon)), im.Range(Feed{}))
	assert.Equal(t, interval.New(day, day.Add(48*time.Hour)), im.Range(Feed{Horizon: 48 * time.Hour}))
}

func TestImport_FromFile(t *testing.T) {
	im, cache := newTestImporter(t)
	path := writeFeed(t, sampleICS)

	res, err := im.Import(context.Background(), Feed{
		OrganizationID: "org",
		UserID:         "user-1",
		Location:       path,
		Horizon:        3 * 24 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Events)
	assert.Equal(t, 1, res.Stats.Outside, "second event is past the horizon")

	rec, ok, err := cache.GetCacheRecord(context.Background(), "org", "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day, rec.RangeStart)
	assert.Equal(t, day.Add(72*time.Hour), rec.RangeEnd)
	assert.Equal(t, []model.BusyInterval{
		{Start: at(9, 0), End: at(10, 0), Source: model.SourceExternal, ReferenceID: "one", Label: "Review"},
	}, rec.Busy)
}

func TestImport_FromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "secret" {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	im, cache := newTestImporter(t)
	_, err := im.Import(context.Background(), Feed{OrganizationID: "org", UserID: "u", Location: srv.URL + "/cal.ics?token=secret"})
	require.NoError(t, err)

	rec, ok, err := cache.GetCacheRecord(context.Background(), "org", "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rec.Busy, 2)

	_, err = im.Import(context.Background(), Feed{OrganizationID: "org", UserID: "u", Location: srv.URL + "/cal.ics?token=wrong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.NotContains(t, err.Error(), "wrong")
}

func TestImportReader_BadCalendarLeavesRecord(t *testing.T) {
	im, cache := newTestImporter(t)
	ctx := context.Background()
	feed := Feed{OrganizationID: "org", UserID: "u"}
	rng := interval.New(day, day.Add(24*time.Hour))

	_, err := im.ImportReader(ctx, feed, strings.NewReader(sampleICS), rng)
	require.NoError(t, err)

	_, err = im.ImportReader(ctx, feed, strings.NewReader("this is not a calendar"), rng)
	require.Error(t, err)

	rec, ok, err := cache.GetCacheRecord(ctx, "org", "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rec.Busy, 1)
}

func TestImportReader_RequiresOwner(t *testing.T) {
	im, _ := newTestImporter(t)
	_, err := im.ImportReader(context.Background(), Feed{UserID: "u"}, strings.NewReader(sampleICS), interval.New(day, day.Add(time.Hour)))
	assert.True(t, model.IsInvalidArgument(err))
}

func TestFetch_MissingFile(t *testing.T) {
	_, err := NewFetcher(nil).Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.ics"))
	assert.Error(t, err)

	_, err = NewFetcher(nil).Fetch(context.Background(), " ")
	assert.Error(t, err)
}

func TestFetch_FileURL(t *testing.T) {
	path := writeFeed(t, sampleICS)
	body, err := NewFetcher(nil).Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, sampleICS, string(body))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.com/a.ics", redactURL("https://user:pw@cal.example.com/a.ics?token=x"))
	assert.Equal(t, "/tmp/a.ics", redactURL("/tmp/a.ics"))
}
