package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/dropshare/dropget/internal/cloud"
	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/transfer"
)

// Opener serves s3://bucket/key descriptors.
type Opener struct {
	Client *Client
}

// NewOpener returns an opener reading through client.
func NewOpener(client *Client) *Opener {
	return &Opener{Client: client}
}

func (o *Opener) Open(ctx context.Context, desc models.FileDescriptor) (*transfer.Body, error) {
	loc, err := storage.ParseLocation(desc.URL)
	if err != nil {
		return nil, &transfer.FetchError{Name: desc.Name, Err: err}
	}

	timer := cloud.StartTimer(nil, "s3 GetObject "+loc.Key)
	out, err := o.Client.GetObject(ctx, loc.Bucket, loc.Key)
	timer.Stop()
	if err != nil {
		fe := &transfer.FetchError{Name: desc.Name, Err: err}
		var se *storage.StatusError
		if errors.As(err, &se) {
			fe.StatusCode = se.StatusCode
		}
		return nil, fe
	}
	if out.Body == nil {
		return nil, &transfer.FetchError{Name: desc.Name, Err: transfer.ErrNoBody}
	}

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}
	return &transfer.Body{
		Reader:   out.Body,
		Length:   length,
		MimeType: aws.ToString(out.ContentType),
	}, nil
}
