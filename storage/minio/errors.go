package minio

import (
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/pure-golang/sheetmail/storage"
)

// toStorageError classifies an S3 error response.
func toStorageError(err error, bucket, key string) error {
	if err == nil {
		return nil
	}

	code := storage.CodeInternalError
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchBucket":
		code = storage.CodeBucketNotFound
	case resp.Code == "NoSuchKey", resp.Code == "NotFound", resp.StatusCode == http.StatusNotFound:
		code = storage.CodeNotFound
	case resp.Code == "AccessDenied", resp.StatusCode == http.StatusForbidden:
		code = storage.CodeAccessDenied
	}

	return &storage.StorageError{
		Code:   code,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}
