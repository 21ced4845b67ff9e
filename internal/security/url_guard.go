package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedURL はインポート元として許可されないURLであることを示す。
var ErrBlockedURL = errors.New("blocked url")

// URLGuard はインポート元URLの検証と、内部ネットワークに到達しないHTTPクライアントを提供する。
type URLGuard interface {
	// ValidateURL はDNS解決前の静的な検証を行う。
	ValidateURL(rawURL string) error
	// NewSafeClient は接続時に解決後のIPアドレスも検証するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client
}

// allowedSchemes はインポート元として許可するURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedPrefixes はインポート元として拒否するネットワーク範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// blockedHostSuffixes は内部向けとみなすホスト名の接尾辞。
var blockedHostSuffixes = []string{".localhost", ".internal", ".local"}

// ImportGuard はURLGuardの実装。
type ImportGuard struct {
	ports []int
}

// NewImportGuard はImportGuardを生成する。portsが空の場合は80と443のみ許可する。
func NewImportGuard(ports ...int) *ImportGuard {
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	return &ImportGuard{ports: ports}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディングによる内部アドレスへの接続も拒否される。
func (g *ImportGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム・ホスト・IPアドレスを静的に検証する。
// 拒否した場合はErrBlockedURLをラップしたエラーを返す。
func (g *ImportGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty URL", ErrBlockedURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrBlockedURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !containsFold(allowedSchemes, scheme) {
		return fmt.Errorf("%w: disallowed scheme %q", ErrBlockedURL, scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, prefix := range blockedPrefixes {
			if prefix.Contains(addr) {
				return fmt.Errorf("%w: address %s", ErrBlockedURL, addr)
			}
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" {
		return fmt.Errorf("%w: host %s", ErrBlockedURL, host)
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return fmt.Errorf("%w: host %s", ErrBlockedURL, host)
		}
	}

	if port := parsed.Port(); port != "" && !g.allowsPort(port) {
		return fmt.Errorf("%w: port %s", ErrBlockedURL, port)
	}

	return nil
}

func (g *ImportGuard) allowsPort(port string) bool {
	p, err := net.LookupPort("tcp", port)
	if err != nil {
		return false
	}
	for _, allowed := range g.ports {
		if p == allowed {
			return true
		}
	}
	return false
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
