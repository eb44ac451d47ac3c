package session

import (
	"context"
	nethttp "net/http"
	"sync"

	"github.com/dropshare/dropget/internal/cloud/providers/azure"
	"github.com/dropshare/dropget/internal/cloud/providers/s3"
	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/resources"
	"github.com/dropshare/dropget/internal/share"
	"github.com/dropshare/dropget/internal/transfer"
)

// NewOpenerRegistry returns the openers for every supported URL scheme:
// http, https, file, s3 and azblob. The S3 client is created on first use
// so sessions without s3:// files never load AWS configuration.
func NewOpenerRegistry(cfg *config.Config, httpClient *nethttp.Client, logger *logging.Logger) *transfer.OpenerRegistry {
	reg := transfer.DefaultRegistry(httpClient)
	reg.Register("s3", &lazyS3Opener{cfg: cfg, httpClient: httpClient, logger: logger})
	reg.Register("azblob", &azure.Opener{HTTPClient: httpClient, Logger: logger})
	return reg
}

type lazyS3Opener struct {
	cfg        *config.Config
	httpClient *nethttp.Client
	logger     *logging.Logger

	once   sync.Once
	opener *s3.Opener
	err    error
}

func (o *lazyS3Opener) Open(ctx context.Context, desc models.FileDescriptor) (*transfer.Body, error) {
	o.once.Do(func() {
		client, err := s3.NewClient(ctx, s3.OptionsFromConfig(o.cfg, o.httpClient, o.logger))
		if err != nil {
			o.err = &transfer.FetchError{Name: desc.Name, Err: err}
			return
		}
		o.opener = s3.NewOpener(client)
	})
	if o.err != nil {
		return nil, o.err
	}
	return o.opener.Open(ctx, desc)
}

// NewPolicy picks the admission policy configured in cfg. The byte budget
// is clamped to the memory the host can spare.
func NewPolicy(cfg *config.Config, logger *logging.Logger) transfer.Policy {
	if cfg.AdmissionMode != config.AdmissionBudget {
		return transfer.NewFixedPolicy(cfg.Concurrency)
	}

	mgr := resources.NewManager(resources.Config{ByteBudget: cfg.ByteBudget})
	if mgr.Clamped() {
		logging.OrNop(logger).Warn().
			Str("requested", resources.FormatBytes(cfg.ByteBudget)).
			Str("effective", resources.FormatBytes(mgr.Budget())).
			Msg("Byte budget reduced to fit available memory")
	}
	return transfer.NewBudgetPolicy(mgr.Budget(), cfg.UnknownSizeWeight)
}

// NewSharer returns an S3 sharer when a share bucket is configured, and a
// sharer that is always unavailable otherwise.
func NewSharer(ctx context.Context, cfg *config.Config, httpClient *nethttp.Client, logger *logging.Logger) share.Sharer {
	if cfg.ShareBucket == "" {
		return share.Unavailable{Reason: "no share bucket configured"}
	}
	client, err := s3.NewClient(ctx, s3.OptionsFromConfig(cfg, httpClient, logger))
	if err != nil {
		logging.OrNop(logger).Warn().Err(err).Msg("S3 sharing disabled")
		return share.Unavailable{Reason: err.Error()}
	}
	return share.NewS3Sharer(client, cfg.SharePrefix, cfg.ShareTTL, logger)
}
