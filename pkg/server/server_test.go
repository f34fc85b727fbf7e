package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foliobooks/folio/internal/testgen"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/worker"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t   *testing.T
	url string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	// Every outbound lookup lands here and finds nothing.
	dead := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(dead.Close)

	cfg := config.NewForTest()
	cfg.RemoteJWTSecret = "secret"
	cfg.GoogleBooksURL = dead.URL
	cfg.OpenLibraryURL = dead.URL
	cfg.StorefrontSearchURL = dead.URL
	cfg.StorefrontProxyPrimary = ""
	cfg.StorefrontProxySecondary = ""

	store, err := localstore.Open(context.Background(), cfg)
	require.NoError(t, err)

	wrkr := worker.New(cfg)
	wrkr.Start()

	srv, err := New(cfg, store, wrkr, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(func() {
		ts.Close()
		wrkr.Shutdown()
		_ = store.Close()
	})

	return &testServer{t: t, url: ts.URL}
}

func (s *testServer) do(method, path, token string, body *bytes.Buffer, contentType string) (*http.Response, []byte) {
	s.t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, s.url+path, body)
	require.NoError(s.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(s.t, err)
	return resp, out.Bytes()
}

func (s *testServer) upload(token, filename string, data []byte, fields map[string]string) (*http.Response, []byte) {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = fw.Write(data)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())
	return s.do(http.MethodPost, "/books", token, &body, mw.FormDataContentType())
}

func (s *testServer) book(token, id string) (int, *models.Book) {
	s.t.Helper()
	resp, body := s.do(http.MethodGet, "/books/"+id, token, nil, "")
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	book := &models.Book{}
	require.NoError(s.t, json.Unmarshal(body, book))
	return resp.StatusCode, book
}

func TestBookLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	data := testgen.EPUB(t, testgen.EPUBOptions{
		Title:         "Dune",
		Authors:       []string{"Frank Herbert"},
		Cover:         testgen.CoverManifestOnly,
		CoverPath:     "images/cover.jpg",
		CoverMimeType: "image/jpeg",
	})
	resp, body := s.upload("", "dune_free_download.epub", data, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	created := &models.Book{}
	require.NoError(t, json.Unmarshal(body, created))
	assert.Equal(t, "dune", created.Title)
	assert.Equal(t, models.UnknownAuthor, created.Author)
	assert.NotEmpty(t, created.ID)

	require.Eventually(t, func() bool {
		_, book := s.book("", created.ID)
		return book != nil && book.EnrichmentState == models.EnrichmentStateComplete && book.CoverRef == models.CoverBlobRef(created.ID)
	}, 10*time.Second, 20*time.Millisecond)

	_, book := s.book("", created.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Frank Herbert", book.Author)
	assert.Equal(t, models.StorageLocal, book.Storage)

	resp, body = s.do(http.MethodGet, "/books", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.Total)

	resp, _ = s.do(http.MethodGet, "/books/"+created.ID+"/cover", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp, body = s.do(http.MethodGet, "/books/"+created.ID+"/file", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "dune_free_download.epub")
	assert.Equal(t, data, body)

	resp, body = s.do(http.MethodPost, "/books/"+created.ID+"/progress", "", bytes.NewBufferString(`{"progress":0.5}`), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	_, book = s.book("", created.ID)
	assert.InDelta(t, 0.5, book.Progress, 1e-9)

	resp, _ = s.do(http.MethodDelete, "/books/"+created.ID, "", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	status, _ := s.book("", created.ID)
	assert.Equal(t, http.StatusNotFound, status)
	resp, _ = s.do(http.MethodGet, "/books/"+created.ID+"/file", "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpload_HintsAndRemoteCover(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := s.upload("", "whatever.epub", testgen.EPUB(t, testgen.EPUBOptions{}), map[string]string{
		"title":     "  Chosen Title ",
		"cover_url": "https://covers.example.com/chosen.jpg",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := &models.Book{}
	require.NoError(t, json.Unmarshal(body, created))
	assert.Equal(t, "Chosen Title", created.Title)

	resp, _ = s.do(http.MethodGet, "/books/"+created.ID+"/cover", "", nil, "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://covers.example.com/chosen.jpg", resp.Header.Get("Location"))
}

func TestUpload_Rejections(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := s.upload("", "broken.epub", []byte("not a zip"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "corrupt_file")

	resp, body = s.upload("", "notes.txt", []byte("just text"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Contains(t, string(body), "unsupported_format")

	resp, _ = s.upload("", "dune.epub", testgen.EPUB(t, testgen.EPUBOptions{}), map[string]string{"cover_url": "not a url"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/books", "", bytes.NewBufferString(`{"title":"x"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBooksAreScopedToTheCaller(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := s.do(http.MethodPost, "/test/tokens", "", bytes.NewBufferString(`{"user_id":"alice"}`), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &tok))

	resp, body = s.upload(tok.Token, "Frank Herbert - Dune.epub", testgen.EPUB(t, testgen.EPUBOptions{}), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := &models.Book{}
	require.NoError(t, json.Unmarshal(body, created))
	assert.Equal(t, "alice", created.UserID)

	status, _ := s.book(tok.Token, created.ID)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.book("", created.ID)
	assert.Equal(t, http.StatusNotFound, status)

	resp, _ = s.do(http.MethodGet, "/books", "not-a-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(http.MethodDelete, "/test/books", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `"deleted":1`))
}

func TestHealthAndNotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, _ := s.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
