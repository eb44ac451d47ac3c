// Package azure reads transfer files from Azure Blob Storage.
//
// Blobs are addressed as azblob://account/container/path?<sas>. The SAS
// token travels with the URL, so no account key is ever needed; public
// containers work with no token at all.
package azure

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/http"
	"github.com/dropshare/dropget/internal/logging"
)

// Client wraps an azblob client bound to one account URL.
//
// Thread-safe: All operations are safe for concurrent use.
type Client struct {
	client *azblob.Client
	logger *logging.Logger
}

// NewClient creates a client for serviceURL, which may carry a SAS query.
// httpClient is used as the transport so connections are shared with the
// rest of the process.
func NewClient(serviceURL string, httpClient *nethttp.Client, logger *logging.Logger) (*Client, error) {
	opts := &azblob.ClientOptions{}
	if httpClient != nil {
		opts.ClientOptions = azcore.ClientOptions{
			Transport: httpClient,
		}
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return &Client{client: client, logger: logging.OrNop(logger)}, nil
}

// buildServiceURL constructs the account URL for loc.
// Format: https://{account}.blob.core.windows.net/?{sas}
// With an endpoint override (Azurite, tests) the account becomes the first
// path segment: {endpoint}/{account}/?{sas}
func buildServiceURL(loc storage.Location, endpoint string) (string, error) {
	if loc.Account == "" {
		return "", fmt.Errorf("%w: Azure storage account name missing", storage.ErrInvalidLocation)
	}

	var base string
	if endpoint != "" {
		base = strings.TrimSuffix(endpoint, "/") + "/" + loc.Account + "/"
	} else {
		base = fmt.Sprintf("https://%s.blob.core.windows.net/", loc.Account)
	}
	if loc.RawQuery != "" {
		base += "?" + loc.RawQuery
	}
	return base, nil
}

// RetryWithBackoff executes fn with exponential backoff retry logic.
func (c *Client) RetryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return http.ExecuteWithRetry(ctx, http.LoggedConfig(c.logger, "azure", operation), fn)
}

// DownloadStream opens a blob for reading.
func (c *Client) DownloadStream(ctx context.Context, container, blob string) (azblob.DownloadStreamResponse, error) {
	var resp azblob.DownloadStreamResponse
	err := c.RetryWithBackoff(ctx, "DownloadStream", func() error {
		r, err := c.client.DownloadStream(ctx, container, blob, nil)
		if err != nil {
			return mapError("DownloadStream", err)
		}
		resp = r
		return nil
	})
	return resp, err
}

// mapError turns azcore response errors into storage errors with a status.
func mapError(op string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return &storage.StatusError{Op: op, StatusCode: nethttp.StatusNotFound, Err: fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)}
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == nethttp.StatusNotFound {
			return &storage.StatusError{Op: op, StatusCode: respErr.StatusCode, Err: fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)}
		}
		return &storage.StatusError{Op: op, StatusCode: respErr.StatusCode, Err: err}
	}
	return err
}
