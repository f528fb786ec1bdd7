package sharepoint

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/docchat/internal/source"
)

// fakeGraph emulates the token endpoint and the drive API for one site.
func fakeGraph(t *testing.T, tokenStatus int) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/token" {
			w.WriteHeader(tokenStatus)
			if tokenStatus != http.StatusOK {
				fmt.Fprint(w, `{"error":"invalid_client","error_description":"bad secret"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
			return
		}

		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/graph/sites/contoso.sharepoint.com:/sites/handbook":
			fmt.Fprint(w, `{"id":"site-1"}`)
		case "/graph/sites/site-1/drive/root:/Shared Documents/HR":
			fmt.Fprint(w, `{"id":"folder-1","name":"HR","folder":{"childCount":3}}`)
		case "/graph/sites/site-1/drive/root:/Shared Documents/HR:/children":
			fmt.Fprintf(w, `{"value":[
				{"id":"item-1","name":"leave.docx","size":5,"file":{}},
				{"id":"sub","name":"archive","folder":{}}
			],"@odata.nextLink":%q}`, srv.URL+"/graph/page2")
		case "/graph/page2":
			fmt.Fprint(w, `{"value":[{"id":"item-2","name":"pay.csv","size":9,"lastModifiedDateTime":"2024-03-01T10:00:00Z","file":{}}]}`)
		case "/graph/sites/site-1/drive/items/item-1/content":
			w.Header().Set("Content-Type", "application/octet-stream")
			fmt.Fprint(w, "hello")
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":"itemNotFound","message":"The resource could not be found."}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStore(t *testing.T, srv *httptest.Server) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), Config{
		ClientID:     "app",
		ClientSecret: "secret",
		SiteURL:      "https://contoso.sharepoint.com/sites/handbook",
		GraphURL:     srv.URL + "/graph",
		TokenURL:     srv.URL + "/token",
	}, nil)
	require.NoError(t, err)
	return store
}

func TestStore_ConnectListDownload(t *testing.T) {
	store := newTestStore(t, fakeGraph(t, http.StatusOK))
	ctx := context.Background()

	require.NoError(t, store.Connect(ctx, "Shared Documents/HR"))

	files, err := store.ListFiles(ctx, "Shared Documents/HR")
	require.NoError(t, err)
	require.Len(t, files, 2, "folders are skipped, pages are followed")
	assert.Equal(t, "leave.docx", files[0].Name)
	assert.Equal(t, "item-2", files[1].ID)
	assert.Equal(t, int64(9), files[1].Size)
	assert.Equal(t, 2024, files[1].ModifiedAt.Year())

	dest := t.TempDir()
	local, err := store.Download(ctx, files[0], dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "leave.docx"), local)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStore_FolderNotFound(t *testing.T) {
	store := newTestStore(t, fakeGraph(t, http.StatusOK))

	err := store.Connect(context.Background(), "Shared Documents/Missing")
	assert.ErrorIs(t, err, source.ErrFolderNotFound)
}

func TestStore_AuthFailure(t *testing.T) {
	store := newTestStore(t, fakeGraph(t, http.StatusUnauthorized))

	err := store.Connect(context.Background(), "Shared Documents/HR")
	assert.ErrorIs(t, err, source.ErrAuth)
}

func TestStore_RequiresConnect(t *testing.T) {
	store := newTestStore(t, fakeGraph(t, http.StatusOK))

	_, err := store.ListFiles(context.Background(), "Shared Documents/HR")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(context.Background(), Config{SiteURL: "https://x"}, nil)
	assert.ErrorIs(t, err, source.ErrAuth)

	_, err = NewStore(context.Background(), Config{ClientID: "a", ClientSecret: "b", TenantID: "t"}, nil)
	assert.Error(t, err)
}
