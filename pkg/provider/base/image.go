// Tankobon: a manga library, reader backend and downloader.
// Copyright (C) 2025 Luca M. Schmidt (LuMiSxh)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package base

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/network"
	"Tankobon/pkg/errors"
)

// FetchImage downloads an image and checks its bytes really are one. Image
// hosts commonly reject requests without the reader page as referer.
func FetchImage(ctx context.Context, client *network.Client, imageURL, referer string) (*core.Image, error) {
	if imageURL == "" {
		return nil, errors.Track(fmt.Errorf("%w: page has no image url", errors.ErrInvalidInput)).Error()
	}

	req := network.NewRequest(imageURL).
		Header("Accept", "image/avif,image/webp,image/*,*/*;q=0.8").
		Referer(referer).
		Build()
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return SniffImage(resp.Body, imageName(imageURL))
}

// SniffImage wraps raw bytes as an Image after content sniffing
func SniffImage(data []byte, name string) (*core.Image, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, errors.Track(fmt.Errorf("%w: got %s", errors.ErrNotImage, mtype.String())).
			WithContext("name", name).
			Error()
	}
	return &core.Image{Data: data, MimeType: mtype.String(), Name: name}, nil
}

func imageName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
