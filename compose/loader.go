package compose

import (
	"context"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pure-golang/sheetmail/mail"
	"github.com/pure-golang/sheetmail/storage"
)

const defaultContentType = "application/octet-stream"

// Loader reads an attachment. It returns (nil, nil) when nothing exists at
// location.
type Loader interface {
	Load(ctx context.Context, location string) (*mail.Attachment, error)
}

// Files loads local paths from disk and s3://bucket/key locations through
// Objects.
type Files struct {
	Objects storage.Storage // nil rejects s3:// locations
}

func (f Files) Load(ctx context.Context, location string) (*mail.Attachment, error) {
	if bucket, key, ok := storage.ParseURI(location); ok {
		return f.loadObject(ctx, bucket, key)
	}
	return loadFile(location)
}

func loadFile(p string) (*mail.Attachment, error) {
	data, err := os.ReadFile(p) // #nosec G304 -- path comes from operator config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", p)
	}

	name := filepath.Base(p)
	return &mail.Attachment{
		Filename:    name,
		ContentType: contentType(name),
		Data:        data,
	}, nil
}

func (f Files) loadObject(ctx context.Context, bucket, key string) (*mail.Attachment, error) {
	if f.Objects == nil {
		return nil, errors.Errorf("no object storage configured for %s%s/%s", storage.Scheme, bucket, key)
	}

	rc, info, err := f.Objects.Get(ctx, bucket, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s%s/%s", storage.Scheme, bucket, key)
	}

	name := path.Base(key)
	ct := contentType(name)
	if ct == defaultContentType && info != nil && info.ContentType != "" {
		ct = info.ContentType
	}

	return &mail.Attachment{
		Filename:    name,
		ContentType: ct,
		Data:        data,
	}, nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}
