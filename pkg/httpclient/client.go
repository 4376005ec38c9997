// Package httpclient provides a configurable HTTP client with browser-like
// TLS fingerprinting for the upstream provider's edge.
package httpclient

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"redgifs-dl-go/pkg/config"
	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/urlutil"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// Client wraps http.Client with fingerprint routing and connection pooling.
// Requests to the provider's hosts go out through a uTLS transport with a
// Chrome ClientHello; the provider's edge rejects Go's default TLS stack.
type Client struct {
	defaultClient  *http.Client
	utlsClient     *http.Client
	providerDomain string
	log            *logging.Logger
}

// ipv4DialContext forces IPv4-only connections. Some provider CDN hosts
// publish AAAA records that do not answer.
func ipv4DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network == "tcp" {
		network = "tcp4"
	}
	d := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 60 * time.Second,
	}
	return d.DialContext(ctx, network, addr)
}

// New creates a new HTTP client with the given configuration.
func New(cfg *config.Config, log *logging.Logger) *Client {
	c := &Client{
		providerDomain: cfg.ProviderDomain,
		log:            log.WithComponent("httpclient"),
	}

	transport := &http.Transport{
		DialContext:           ipv4DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	if cfg.GlobalProxy != "" {
		if err := configureProxy(transport, cfg.GlobalProxy); err != nil {
			c.log.Warn("ignoring unusable proxy", "proxy", cfg.GlobalProxy, "error", err)
		}
	}

	c.defaultClient = &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}

	c.utlsClient = &http.Client{
		Transport: newUTLSRoundTripper(),
		Timeout:   30 * time.Second,
	}

	return c
}

// configureProxy routes the transport through a SOCKS5 or HTTP proxy.
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return err
	}

	switch parsed.Scheme {
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(parsed, proxy.Direct)
		if err != nil {
			return err
		}
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.Dial = dialer.Dial
		}
	default:
		transport.Proxy = http.ProxyURL(parsed)
	}
	return nil
}

// Do executes an HTTP request, routing provider hosts through the uTLS client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if urlutil.BelongsToDomain(req.URL.String(), c.providerDomain) {
		return c.utlsClient.Do(req)
	}
	return c.defaultClient.Do(req)
}

// utlsRoundTripper implements http.RoundTripper with utls and HTTP/2 support.
type utlsRoundTripper struct {
	dialer      *net.Dialer
	h2Transport *http2.Transport
}

func newUTLSRoundTripper() *utlsRoundTripper {
	return &utlsRoundTripper{
		dialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 60 * time.Second,
		},
		h2Transport: &http2.Transport{
			DisableCompression: false,
			AllowHTTP:          false,
		},
	}
}

func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Only handle HTTPS
	if req.URL.Scheme != "https" {
		return http.DefaultTransport.RoundTrip(req)
	}

	addr := req.URL.Host
	if !strings.Contains(addr, ":") {
		addr = addr + ":443"
	}

	conn, err := t.dialer.DialContext(req.Context(), "tcp4", addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &utls.Config{
		ServerName: req.URL.Hostname(),
	}

	// Chrome 120 fingerprint with HTTP/2 ALPN
	utlsConn := utls.UClient(conn, tlsConfig, utls.HelloChrome_120)

	if err := utlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	if utlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		h2Conn, err := t.h2Transport.NewClientConn(utlsConn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2Conn.RoundTrip(req)
	}

	// Fallback to HTTP/1.1
	return t.doHTTP1Request(utlsConn, req)
}

func (t *utlsRoundTripper) doHTTP1Request(conn net.Conn, req *http.Request) (*http.Response, error) {
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Wrap body to close connection when done
	resp.Body = &connCloser{resp.Body, conn}
	return resp, nil
}

type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.conn.Close()
}
