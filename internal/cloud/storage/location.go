package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Location identifies one object in a bucket or container.
//
//	s3://bucket/path/to/key
//	azblob://account/container/path/to/blob?<sas>
type Location struct {
	Scheme   string
	Account  string // Azure storage account, empty for S3
	Bucket   string // S3 bucket or Azure container
	Key      string
	RawQuery string // SAS token for Azure, empty otherwise
}

// ParseLocation parses an s3:// or azblob:// object URL.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	path := strings.TrimPrefix(u.Path, "/")
	switch strings.ToLower(u.Scheme) {
	case "s3":
		if u.Host == "" || path == "" {
			return Location{}, fmt.Errorf("%w: %s needs a bucket and key", ErrInvalidLocation, raw)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Key: path}, nil

	case "azblob":
		container, blob, ok := strings.Cut(path, "/")
		if u.Host == "" || !ok || container == "" || blob == "" {
			return Location{}, fmt.Errorf("%w: %s needs an account, container and blob", ErrInvalidLocation, raw)
		}
		return Location{
			Scheme:   "azblob",
			Account:  u.Host,
			Bucket:   container,
			Key:      blob,
			RawQuery: u.RawQuery,
		}, nil

	default:
		return Location{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocation, u.Scheme)
	}
}

// String renders the location back into URL form.
func (l Location) String() string {
	switch l.Scheme {
	case "azblob":
		s := "azblob://" + l.Account + "/" + l.Bucket + "/" + l.Key
		if l.RawQuery != "" {
			s += "?" + l.RawQuery
		}
		return s
	default:
		return "s3://" + l.Bucket + "/" + l.Key
	}
}
