package restoration

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"
)

const (
	maxImageBytes = 20 << 20
	dialTimeout   = 10 * time.Second
)

// ErrForbiddenAddress is returned when an image URL resolves to an address
// the server must not reach, such as loopback, private or link-local ones.
var ErrForbiddenAddress = errors.New("image address not allowed")

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// publicOnly is a dialer Control hook. It runs on the resolved address of
// every connection, redirects included.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!sharedAddressSpace.Contains(ip)
}

func newImageClient(control func(network, address string, c syscall.RawConn) error) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout, Control: control}
	transport := &http.Transport{
		// No proxy: the address check must see the image host itself.
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: dialTimeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: requestTimeout}
}

// IsDataURL reports whether s is an inline base64 data URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DecodeDataURL returns the bytes and media type of a base64 data URL.
func DecodeDataURL(s string) ([]byte, string, error) {
	if !IsDataURL(s) {
		return nil, "", fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	mediaType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return nil, "", fmt.Errorf("unsupported data URL encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL: %w", err)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return data, mediaType, nil
}

// FetchImage loads an image from a data URL or over HTTP(S). Hosts that
// resolve to non-public addresses are refused with ErrForbiddenAddress.
func (c *Client) FetchImage(ctx context.Context, rawURL string) (Image, error) {
	if IsDataURL(rawURL) {
		data, mediaType, err := DecodeDataURL(rawURL)
		if err != nil {
			return Image{}, err
		}
		return Image{Filename: "image" + ExtensionFor(mediaType), ContentType: mediaType, Data: data}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Image{}, fmt.Errorf("invalid image URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Image{}, fmt.Errorf("%w: scheme %q", ErrForbiddenAddress, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Image{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.imageClient.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return Image{}, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "image" + ExtensionFor(contentType)
	}
	return Image{Filename: name, ContentType: contentType, Data: data}, nil
}

// ExtensionFor maps an image media type to a file extension.
func ExtensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".jpg"
}
