package azure

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/dropshare/dropget/internal/cloud"
	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/transfer"
)

// Opener serves azblob:// descriptors.
type Opener struct {
	HTTPClient *nethttp.Client
	Endpoint   string // Overrides https://{account}.blob.core.windows.net
	Logger     *logging.Logger
}

func (o *Opener) Open(ctx context.Context, desc models.FileDescriptor) (*transfer.Body, error) {
	loc, err := storage.ParseLocation(desc.URL)
	if err != nil {
		return nil, &transfer.FetchError{Name: desc.Name, Err: err}
	}
	serviceURL, err := buildServiceURL(loc, o.Endpoint)
	if err != nil {
		return nil, &transfer.FetchError{Name: desc.Name, Err: err}
	}

	// Clients are cheap; the transport and its pool are shared.
	client, err := NewClient(serviceURL, o.HTTPClient, o.Logger)
	if err != nil {
		return nil, &transfer.FetchError{Name: desc.Name, Err: err}
	}

	timer := cloud.StartTimer(nil, "azure DownloadStream "+loc.Key)
	resp, err := client.DownloadStream(ctx, loc.Bucket, loc.Key)
	timer.Stop()
	if err != nil {
		fe := &transfer.FetchError{Name: desc.Name, Err: err}
		var se *storage.StatusError
		if errors.As(err, &se) {
			fe.StatusCode = se.StatusCode
		}
		return nil, fe
	}
	if resp.Body == nil {
		return nil, &transfer.FetchError{Name: desc.Name, Err: transfer.ErrNoBody}
	}

	body := &transfer.Body{Reader: resp.Body, Length: -1}
	if resp.ContentLength != nil {
		body.Length = *resp.ContentLength
	}
	if resp.ContentType != nil {
		body.MimeType = *resp.ContentType
	}
	return body, nil
}
