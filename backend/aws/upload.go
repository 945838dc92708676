package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mwantia/folders/data"
	"golang.org/x/sync/errgroup"
)

// uploader streams one object into S3. Content that fits a single part is
// sent with PutObject, larger content as a multipart upload with at most
// queueSize parts in flight, so memory stays at queueSize+1 part buffers.
type uploader struct {
	client    Client
	bucket    string
	key       string
	partSize  int64
	queueSize int
}

// readPart fills one part buffer. last reports that r is exhausted.
func (u *uploader) readPart(r io.Reader) (part []byte, last bool, err error) {
	buf := make([]byte, u.partSize)
	n, err := io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:n], true, nil
	case err != nil:
		return nil, false, err
	}
	return buf, false, nil
}

func (u *uploader) upload(ctx context.Context, r io.Reader) (data.WriteResult, error) {
	first, last, err := u.readPart(r)
	if err != nil {
		return nil, err
	}

	if last {
		out, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        awssdk.String(u.bucket),
			Key:           awssdk.String(u.key),
			Body:          bytes.NewReader(first),
			ContentLength: awssdk.Int64(int64(len(first))),
			ContentType:   awssdk.String(data.MIMEType(u.key)),
		})
		if err != nil {
			return nil, err
		}
		return data.ObjectWritten(trimETag(out.ETag), awssdk.ToString(out.VersionId)), nil
	}

	return u.multipart(ctx, r, first)
}

func (u *uploader) multipart(ctx context.Context, r io.Reader, first []byte) (data.WriteResult, error) {
	created, err := u.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      awssdk.String(u.bucket),
		Key:         awssdk.String(u.key),
		ContentType: awssdk.String(data.MIMEType(u.key)),
	})
	if err != nil {
		return nil, err
	}
	uploadID := created.UploadId

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.queueSize)

	var mu sync.Mutex
	var parts []types.CompletedPart

	var readErr error
	part, last := first, false
	for number := int32(1); ; number++ {
		body := part
		g.Go(func() error {
			out, err := u.client.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        awssdk.String(u.bucket),
				Key:           awssdk.String(u.key),
				UploadId:      uploadID,
				PartNumber:    awssdk.Int32(number),
				Body:          bytes.NewReader(body),
				ContentLength: awssdk.Int64(int64(len(body))),
			})
			if err != nil {
				return fmt.Errorf("upload part %d: %w", number, err)
			}

			mu.Lock()
			defer mu.Unlock()
			parts = append(parts, types.CompletedPart{
				ETag:       out.ETag,
				PartNumber: awssdk.Int32(number),
			})
			return nil
		})

		if last || gctx.Err() != nil {
			break
		}

		part, last, readErr = u.readPart(r)
		if readErr != nil || len(part) == 0 {
			break
		}
	}

	err = errors.Join(g.Wait(), readErr)
	if err != nil {
		_, abortErr := u.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   awssdk.String(u.bucket),
			Key:      awssdk.String(u.key),
			UploadId: uploadID,
		})
		return nil, errors.Join(err, abortErr)
	}

	slices.SortFunc(parts, func(a, b types.CompletedPart) int {
		return int(awssdk.ToInt32(a.PartNumber) - awssdk.ToInt32(b.PartNumber))
	})

	out, err := u.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   awssdk.String(u.bucket),
		Key:      awssdk.String(u.key),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return nil, err
	}
	return data.ObjectWritten(trimETag(out.ETag), awssdk.ToString(out.VersionId)), nil
}

func trimETag(etag *string) string {
	return strings.Trim(awssdk.ToString(etag), `"`)
}
