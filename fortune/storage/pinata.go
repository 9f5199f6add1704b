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

package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/log"
)

// maxImageSize bounds image downloads before pinning.
var maxImageSize int64 = 20 << 20

// Pinata pins JSON documents and files through the Pinata pinning API.
type Pinata struct {
	base   string
	jwt    string
	client *http.Client
}

// NewPinata creates a pinning client for the API at base, authenticated with
// a Pinata JWT.
func NewPinata(base, jwt string, timeout time.Duration) *Pinata {
	return &Pinata{
		base:   strings.TrimRight(base, "/"),
		jwt:    jwt,
		client: &http.Client{Timeout: timeout},
	}
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinJSONRequest struct {
	Content  interface{} `json:"pinataContent"`
	Metadata pinMetadata `json:"pinataMetadata"`
	Options  pinOptions  `json:"pinataOptions"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// PinJSON pins v as a JSON document and returns its CID.
func (p *Pinata) PinJSON(ctx context.Context, name string, v interface{}) (string, error) {
	body, err := json.Marshal(pinJSONRequest{
		Content:  v,
		Metadata: pinMetadata{Name: name},
		Options:  pinOptions{CIDVersion: 1},
	})
	if err != nil {
		return "", fault.Wrap(fault.InvalidInput, "pin json", err)
	}
	cid, err := p.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	log.Debug("Pinned document", "name", name, "cid", cid)
	return cid, nil
}

// PinFile pins raw file content and returns its CID.
func (p *Pinata) PinFile(ctx context.Context, name, contentType string, data []byte) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin file", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin file", err)
	}
	meta, _ := json.Marshal(pinMetadata{Name: name})
	opts, _ := json.Marshal(pinOptions{CIDVersion: 1})
	if err := form.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin file", err)
	}
	if err := form.WriteField("pinataOptions", string(opts)); err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin file", err)
	}
	if err := form.Close(); err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin file", err)
	}

	cid, err := p.pin(ctx, "/pinning/pinFileToIPFS", form.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	log.Debug("Pinned file", "name", name, "size", len(data), "cid", cid)
	return cid, nil
}

// PinURL downloads the image at url, which may be an http(s) or a base64
// data: URL, and pins it.
func (p *Pinata) PinURL(ctx context.Context, name, url string) (string, error) {
	data, contentType, err := p.download(ctx, url)
	if err != nil {
		return "", err
	}
	return p.PinFile(ctx, name, contentType, data)
}

func (p *Pinata) download(ctx context.Context, url string) ([]byte, string, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeDataURL(url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fault.Wrap(fault.InvalidInput, "fetch image", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fault.Wrap(fault.StorageUploadFailed, "fetch image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fault.New(fault.StorageUploadFailed, "fetch image", fmt.Sprintf("status %d from %s", resp.StatusCode, url))
	}
	data, err := readLimited(resp.Body, maxImageSize)
	if err != nil {
		return nil, "", fault.Wrap(fault.StorageUploadFailed, "fetch image", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func decodeDataURL(url string) ([]byte, string, error) {
	head, payload, ok := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !ok {
		return nil, "", fault.New(fault.InvalidInput, "fetch image", "malformed data URL")
	}
	contentType := strings.TrimSuffix(head, ";base64")
	if !strings.HasSuffix(head, ";base64") {
		return []byte(payload), contentType, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fault.Wrap(fault.InvalidInput, "fetch image", err)
	}
	return data, contentType, nil
}

func (p *Pinata) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	if p.jwt == "" {
		return "", fault.New(fault.StorageUploadFailed, "pin", "pinning is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, body)
	if err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fault.New(fault.StorageUploadFailed, "pin", fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fault.Wrap(fault.StorageUploadFailed, "pin", err)
	}
	if out.IpfsHash == "" {
		return "", fault.New(fault.StorageUploadFailed, "pin", "no content identifier returned")
	}
	return out.IpfsHash, nil
}
