package importfeeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmlcustomizer/syndicator/internal/database/dbtest"
	"xmlcustomizer/syndicator/internal/storage"
)

const feedsCSV = `name,url
Costa Blanca,https://agent.example/kyero.xml
,https://other.example/feed.xml
broken,ftp://agent.example/feed.xml
Costa Blanca again,https://agent.example/kyero.xml

`

func newImporter(t *testing.T) (*Importer, *storage.FeedRepository, afero.Fs) {
	t.Helper()
	repo := storage.NewFeedRepository(dbtest.Open(t))
	fs := afero.NewMemMapFs()
	return NewImporter(repo, fs), repo, fs
}

func TestImportFeeds_LocalFile(t *testing.T) {
	importer, repo, fs := newImporter(t)
	require.NoError(t, afero.WriteFile(fs, "feeds.csv", []byte(feedsCSV), 0o644))

	summary, err := importer.ImportFeeds(context.Background(), "feeds.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped, "duplicate URL within the file")
	assert.Len(t, summary.Errors, 1)

	feeds, err := repo.List(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "Costa Blanca", feeds[0].Name)
	assert.Equal(t, "https://other.example/feed.xml", feeds[1].Name, "name falls back to the URL")

	again, err := importer.ImportFeeds(context.Background(), "feeds.csv")
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Equal(t, 3, again.Skipped)
}

func TestImportFeeds_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feeds.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("url\nhttps://agent.example/kyero.xml\n"))
	}))
	defer srv.Close()

	importer, _, _ := newImporter(t)

	summary, err := importer.ImportFeeds(context.Background(), srv.URL+"/feeds.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	_, err = importer.ImportFeeds(context.Background(), srv.URL+"/missing.csv")
	assert.ErrorContains(t, err, "HTTP status 404")
}

func TestImportFeeds_Errors(t *testing.T) {
	importer, _, fs := newImporter(t)

	_, err := importer.ImportFeeds(context.Background(), "absent.csv")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "nourl.csv", []byte("name,link\na,https://x.example\n"), 0o644))
	_, err = importer.ImportFeeds(context.Background(), "nourl.csv")
	assert.ErrorContains(t, err, "'url'")

	require.NoError(t, afero.WriteFile(fs, "empty.csv", nil, 0o644))
	_, err = importer.ImportFeeds(context.Background(), "empty.csv")
	assert.Error(t, err)
}
