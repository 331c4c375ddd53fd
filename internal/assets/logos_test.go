package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/btc.png", "png"},
		{"https://cdn.example.com/eth.JPG", "jpg"},
		{"https://cdn.example.com/sol.jpeg?size=64", "jpeg"},
		{"https://cdn.example.com/ada.svg", "svg"},
		{"https://cdn.example.com/dot.webp", "webp"},
		{"https://cdn.example.com/doge.gif", "png"},
		{"https://cdn.example.com/noext", "png"},
		{"://broken", "png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extensionOf(tt.url), tt.url)
	}
}

func TestFetchDownloadsAndNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("imagebytes"))
	}))
	defer srv.Close()

	d, err := New(t.TempDir())
	require.NoError(t, err)

	local, ok := d.Fetch(context.Background(), srv.URL+"/logos/bitcoin.png", "bitcoin")
	require.True(t, ok)
	assert.Equal(t, "bitcoin.png", filepath.Base(local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "imagebytes", string(data))
}

func TestFetchReusesExistingFile(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	d, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := d.Fetch(context.Background(), srv.URL+"/eth.png", "ethereum")
	require.True(t, ok)
	_, ok = d.Fetch(context.Background(), srv.URL+"/eth.png", "ethereum")
	require.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestFetchMissingLogoIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := d.Fetch(context.Background(), srv.URL+"/missing.png", "ghost")
	assert.False(t, ok)

	files, err := d.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFetchEmptyInputs(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := d.Fetch(context.Background(), "", "bitcoin")
	assert.False(t, ok)
	_, ok = d.Fetch(context.Background(), "https://cdn.example.com/x.png", "")
	assert.False(t, ok)
}
