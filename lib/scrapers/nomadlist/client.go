package nomadlist

import (
	"context"
	"log/slog"
	"time"

	"nomadscout/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	random "github.com/mazen160/go-random"
)

type ClientOptions struct {
	BaseUrl string
	// per-request timeout, defaults to 30s
	Timeout time.Duration
	// upper bound of the random delay before each request, 0 disables it
	MaxJitter time.Duration
}

// Client is the production PageFetcher. The site sits behind cloudflare,
// so the transport carries the bypass round tripper, and requests are
// jittered to stay under its rate tolerance.
type Client struct {
	http      *resty.Client
	maxJitter time.Duration
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(timeout)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "scrapers/nomadlist/http")

	return &Client{
		http:      client,
		maxJitter: opts.MaxJitter,
	}
}

// Resty exposes the underlying client, mainly for tests to hook the
// transport.
func (c *Client) Resty() *resty.Client {
	return c.http
}

func (c *Client) FetchPage(ctx context.Context, link string) (int, []byte, error) {
	c.jitter(ctx)

	res, err := c.http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode(), res.Body(), nil
}

func (c *Client) jitter(ctx context.Context) {
	if c.maxJitter <= 0 {
		return
	}
	ms, err := random.IntRange(0, int(c.maxJitter.Milliseconds())+1)
	if err != nil {
		slog.WarnContext(ctx, "failed to draw request jitter", "err", err)
		return
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
	}
}
