package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuardService は設定で与えられる上流API（大気汚染データなど）への
// 送信経路を内部ネットワークから切り離すためのインターフェース。
type OutboundGuardService interface {
	// NewSafeClient は接続時にDNS解決後のIPを検査し、
	// 内部アドレスへの接続を拒否するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は起動時にURLの形だけを検査する。DNS解決は行わない。
	ValidateURL(rawURL string) error
}

var (
	outboundSchemes = []string{"http", "https"}
	outboundPorts   = []uint16{80, 443}
)

// internalPrefixes は上流として指定できないアドレス範囲。
// 169.254.0.0/16 はクラウドのメタデータエンドポイントを含む。
var internalPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var errEmptyURL = errors.New("outbound URL is empty")

type outboundGuard struct{}

// NewOutboundGuard はOutboundGuardServiceを返す。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{}
}

// NewSafeClient はsafeurlのクライアントを返す。接続先ポートは80/443に限る。
func (g *outboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	ports := make([]int, 0, len(outboundPorts))
	for _, p := range outboundPorts {
		ports = append(ports, int(p))
	}

	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(outboundSchemes...).
		SetAllowedPorts(ports...).
		Build()
	return safeurl.Client(cfg).Client
}

func (g *outboundGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("outbound URL is malformed: %w", err)
	}

	if !slices.Contains(outboundSchemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("outbound URL scheme %q is not allowed", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("outbound URL %q has no host", rawURL)
	}

	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || !slices.Contains(outboundPorts, uint16(n)) {
			return fmt.Errorf("outbound URL port %s is not allowed", p)
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isInternalAddr(addr) {
			return fmt.Errorf("outbound URL points to internal address %s", addr)
		}
		return nil
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("outbound URL points to %s", host)
	}
	return nil
}

// isInternalAddr はIPv4射影アドレスを展開してからinternalPrefixesと照合する。
func isInternalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return slices.ContainsFunc(internalPrefixes, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}
