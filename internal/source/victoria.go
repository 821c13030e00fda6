package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/emertechie/vic-viewer/internal/cursor"
)

const (
	queryPath      = "/select/logsql/query"
	DefaultTimeout = 10 * time.Second
)

type VictoriaConfig struct {
	BaseURL string
	Timeout time.Duration
	// Client overrides the default pooled client.
	Client *http.Client
	Logger *slog.Logger
}

// Victoria queries a VictoriaLogs instance over its LogsQL HTTP API.
type Victoria struct {
	endpoint *url.URL
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

func NewVictoria(cfg VictoriaConfig) (*Victoria, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid VictoriaLogs url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Victoria{
		endpoint: base.JoinPath(queryPath),
		timeout:  cfg.Timeout,
		client:   cfg.Client,
		logger:   cfg.Logger,
	}, nil
}

// LogsQL renders q as the query sent upstream. A direction adds sort and
// limit pipes so the backend returns the rows nearest the anchor.
func LogsQL(q Query) string {
	switch q.Direction {
	case cursor.Older:
		return fmt.Sprintf("%s | sort by (_time desc) | limit %d", q.Query, q.Limit)
	case cursor.Newer:
		return fmt.Sprintf("%s | sort by (_time) | limit %d", q.Query, q.Limit)
	default:
		return q.Query
	}
}

func (v *Victoria) QueryRaw(ctx context.Context, q Query) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	u := *v.endpoint
	params := url.Values{}
	params.Set("query", LogsQL(q))
	params.Set("start", q.Start)
	params.Set("end", q.End)
	params.Set("limit", strconv.Itoa(q.Limit))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &UpstreamError{Source: NameVictoriaLogs, StatusCode: http.StatusBadGateway, Message: "Upstream request failed", Err: err}
	}
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, v.transportError(err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, v.transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.logger.Warn("upstream request failed", "source", NameVictoriaLogs, "status", resp.StatusCode)
		return nil, &UpstreamError{
			Source:     NameVictoriaLogs,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Upstream request failed with status %d", resp.StatusCode),
			Body:       string(body),
		}
	}

	payload, err := parsePayload(body)
	if err != nil {
		return nil, &UpstreamError{Source: NameVictoriaLogs, StatusCode: http.StatusBadGateway, Message: errUnparseable.Error(), Err: err}
	}
	return payload, nil
}

func (v *Victoria) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) && netErr.Timeout() {
		return &UpstreamError{
			Source:     NameVictoriaLogs,
			StatusCode: http.StatusGatewayTimeout,
			Message:    fmt.Sprintf("Upstream request timeout after %dms", v.timeout.Milliseconds()),
			Err:        err,
		}
	}
	return &UpstreamError{Source: NameVictoriaLogs, StatusCode: http.StatusBadGateway, Message: "Upstream request failed", Err: err}
}

// readBody reads the response, undoing any content encoding we asked for.
func readBody(resp *http.Response) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "zstd":
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return io.ReadAll(dec)
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return io.ReadAll(resp.Body)
	}
}
