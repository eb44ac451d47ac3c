package azure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/transfer"
)

func TestBuildServiceURL(t *testing.T) {
	tests := []struct {
		name     string
		loc      storage.Location
		endpoint string
		want     string
		wantErr  bool
	}{
		{
			name: "public endpoint with SAS",
			loc:  storage.Location{Account: "myaccount", RawQuery: "sv=2021-06-08&ss=b&sig=abc"},
			want: "https://myaccount.blob.core.windows.net/?sv=2021-06-08&ss=b&sig=abc",
		},
		{
			name: "anonymous",
			loc:  storage.Location{Account: "myaccount"},
			want: "https://myaccount.blob.core.windows.net/",
		},
		{
			name:     "endpoint override",
			loc:      storage.Location{Account: "devstoreaccount1", RawQuery: "sig=x"},
			endpoint: "http://127.0.0.1:10000/",
			want:     "http://127.0.0.1:10000/devstoreaccount1/?sig=x",
		},
		{
			name:    "no account",
			loc:     storage.Location{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildServiceURL(tt.loc, tt.endpoint)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "account name missing") {
					t.Errorf("buildServiceURL() error = %v, want account name error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("buildServiceURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func blobServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/acct/docs/report.txt":
			if r.URL.Query().Get("sig") != "s3cr3t" {
				t.Errorf("SAS token not forwarded: %s", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("Content-Length", "11")
			w.Header().Set("x-ms-blob-type", "BlockBlob")
			io.WriteString(w, "hello azure")
		default:
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOpenerReadsBlob(t *testing.T) {
	srv := blobServer(t)
	defer srv.Close()

	opener := &Opener{HTTPClient: srv.Client(), Endpoint: srv.URL}
	body, err := opener.Open(context.Background(), models.FileDescriptor{
		Name: "report.txt",
		URL:  "azblob://acct/docs/report.txt?sv=2021&sig=s3cr3t",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Reader.Close()

	data, _ := io.ReadAll(body.Reader)
	if string(data) != "hello azure" {
		t.Errorf("body = %q", data)
	}
	if body.Length != 11 || body.MimeType != "text/plain" {
		t.Errorf("Length=%d MimeType=%q", body.Length, body.MimeType)
	}
}

func TestOpenerMissingBlob(t *testing.T) {
	srv := blobServer(t)
	defer srv.Close()

	opener := &Opener{HTTPClient: srv.Client(), Endpoint: srv.URL}
	_, err := opener.Open(context.Background(), models.FileDescriptor{Name: "gone.txt", URL: "azblob://acct/docs/gone.txt"})

	var fe *transfer.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("expected FetchError with 404, got %v", err)
	}
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("error should wrap ErrObjectNotFound: %v", err)
	}
}

func TestOpenerInvalidLocation(t *testing.T) {
	opener := &Opener{}
	_, err := opener.Open(context.Background(), models.FileDescriptor{Name: "x", URL: "azblob://acct/container-only"})
	if !errors.Is(err, storage.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}
