// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package storage talks to content-addressed storage: it pins documents and
// images through Pinata and resolves ipfs:// addresses through a list of
// public gateways. It also wraps the durable object store that turns a
// transient image URL into a permanent one.
package storage

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

const scheme = "ipfs://"

// errTooLarge is returned when a body exceeds its read limit.
var errTooLarge = errors.New("response body exceeds size limit")

// readLimited reads r fully, failing instead of truncating when it holds
// more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", errTooLarge, limit)
	}
	return data, nil
}

// URI returns the content address of a CID.
func URI(cid string) string {
	return scheme + cid
}

// CID extracts the content identifier from an ipfs:// address, a bare CID or
// a gateway URL of the form https://host/ipfs/<cid>. Anything else yields "".
func CID(uri string) string {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, scheme):
		uri = strings.TrimPrefix(uri, scheme)
		return strings.TrimPrefix(uri, "ipfs/")
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		if i := strings.Index(uri, "/ipfs/"); i >= 0 {
			return uri[i+len("/ipfs/"):]
		}
		return ""
	}
	if strings.ContainsAny(uri, ":/ ") {
		return ""
	}
	return uri
}

// IsContentAddress reports whether uri can be resolved through a gateway.
func IsContentAddress(uri string) bool {
	return CID(uri) != ""
}

var unsafeRun = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeName lowercases s and collapses every run of characters outside
// [a-z0-9] into a single hyphen.
func SanitizeName(s string) string {
	s = unsafeRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

// ObjectName builds the file name used for a card image.
func ObjectName(username, zodiacType, sign string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%d.png", SanitizeName(username), SanitizeName(zodiacType), SanitizeName(sign), at.UnixMilli())
}
