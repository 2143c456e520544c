// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frontend

import (
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// MaxUploadSize bounds upload request bodies.
const MaxUploadSize = 10 << 20

// upload is the decoded body of a media upload.
type upload struct {
	Metadata    []byte // JSON, multipart uploads only
	ContentType string
	Data        []byte
}

func isMedia(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") ||
		strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "video/")
}

// readUpload decodes a simple upload (the media is the body, optionally
// base64 encoded) or a multipart/related one (a JSON metadata part and a
// media part, the first of each is used).
func readUpload(r *http.Request) (*upload, error) {
	ct, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.Annotate(err, "bad Content-Type").Tag(grpcutil.InvalidArgumentTag).Err()
	}
	body := io.LimitReader(r.Body, MaxUploadSize+1)

	up := &upload{}
	switch {
	case ct == "multipart/related" || ct == "multipart/mixed":
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, errors.Annotate(err, "reading multipart body").Tag(grpcutil.InvalidArgumentTag).Err()
			}
			pct, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			switch {
			case pct == "application/json" && up.Metadata == nil:
				if up.Metadata, err = io.ReadAll(part); err != nil {
					return nil, errors.Annotate(err, "reading metadata").Err()
				}
			case isMedia(pct) && up.Data == nil:
				if up.Data, err = readMediaBody(part, part.Header.Get("Content-Transfer-Encoding")); err != nil {
					return nil, err
				}
				up.ContentType = pct
			}
		}
	case isMedia(ct):
		if up.Data, err = readMediaBody(body, r.Header.Get("Content-Transfer-Encoding")); err != nil {
			return nil, err
		}
		up.ContentType = ct
	}
	if up.Data == nil {
		return nil, errors.Reason("couldn't decode content or invalid content-type").Tag(grpcutil.InvalidArgumentTag).Err()
	}
	if len(up.Data) > MaxUploadSize {
		return nil, errors.Reason("media exceeds %d bytes", MaxUploadSize).Tag(grpcutil.InvalidArgumentTag).Err()
	}
	return up, nil
}

func readMediaBody(r io.Reader, encoding string) ([]byte, error) {
	if strings.EqualFold(encoding, "base64") {
		r = base64.NewDecoder(base64.StdEncoding, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(err, "reading media").Tag(grpcutil.InvalidArgumentTag).Err()
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}
