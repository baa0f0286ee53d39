/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"net/url"
	"strings"

	"editpdfs/internal/pdfdoc"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// ErrDataURL reports an image source that is not a usable data URL.
var ErrDataURL = errors.New("invalid data url")

// decodeDataURL splits "data:<mime>[;base64],<payload>" into the media
// marker and the raw bytes.
func decodeDataURL(src string) (marker string, data []byte, err error) {
	if !strings.HasPrefix(src, "data:") {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrDataURL)
	}
	meta, payload, ok := strings.Cut(src[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrDataURL)
	}
	marker = strings.ToLower(meta)
	if strings.HasSuffix(marker, ";base64") {
		payload = strings.TrimSpace(payload)
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrDataURL, err)
		}
		return marker, data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDataURL, err)
	}
	return marker, []byte(s), nil
}

// embedImage picks the embedding from the media marker: PNG when it names
// png, formats the writer cannot take transcoded to PNG, JPEG otherwise.
func embedImage(doc *pdfdoc.Document, src string) (*pdfdoc.Image, error) {
	marker, data, err := decodeDataURL(src)
	if err != nil {
		return nil, err
	}
	var decode func([]byte) (image.Image, error)
	switch {
	case strings.Contains(marker, "webp"):
		decode = func(b []byte) (image.Image, error) { return webp.Decode(bytes.NewReader(b)) }
	case strings.Contains(marker, "bmp"):
		decode = func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) }
	case strings.Contains(marker, "gif"):
		decode = func(b []byte) (image.Image, error) { return gif.Decode(bytes.NewReader(b)) }
	case strings.Contains(marker, "png"):
		return doc.EmbedPNG(data)
	default:
		return doc.EmbedJPG(data)
	}
	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", marker, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("transcode %s: %w", marker, err)
	}
	return doc.EmbedPNG(buf.Bytes())
}
