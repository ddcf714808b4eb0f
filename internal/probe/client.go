package probe

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/hyp3rd/ewrap"
	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
)

const (
	betAmountParam  = "betAmount"
	maxResponseBody = 1 << 20
)

// Outcome classifies a single spin call.
type Outcome int

const (
	// OutcomeRecorded means the call returned 200 with a well-formed body.
	OutcomeRecorded Outcome = iota
	// OutcomeDiscarded means the endpoint answered with a non-200 status.
	OutcomeDiscarded
	// OutcomeParseError means a 200 body failed schema validation.
	OutcomeParseError
	// OutcomeTransportError means no usable HTTP response was received.
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// SpinResponse is the body the spin endpoint returns on success.
type SpinResponse struct {
	Matrix         [][]int          `json:"matrix,omitempty"`
	WinAmount      *decimal.Decimal `json:"winAmount"`
	CurrentBalance *decimal.Decimal `json:"currentBalance"`
}

// SpinResult is the explicit result of one call. Err is set for parse and
// transport errors only.
type SpinResult struct {
	Outcome     Outcome
	Observation Observation
	Matrix      [][]int
	StatusCode  int
	Duration    time.Duration
	Err         error
}

// Spinner performs a single spin.
type Spinner interface {
	Spin(ctx context.Context) SpinResult
}

type ClientOptions struct {
	// Timeout bounds each call; zero leaves the transport default.
	Timeout time.Duration
	// InsecureSkipVerify accepts self-signed or otherwise untrusted
	// certificates from the target.
	InsecureSkipVerify bool
	// HTTPClient replaces the client built from the fields above.
	HTTPClient *http.Client
}

// Client posts spins to a fixed endpoint with a fixed wager.
type Client struct {
	spinURL    string
	bet        decimal.Decimal
	httpClient *http.Client
}

func NewClient(rawURL string, bet decimal.Decimal, opts ClientOptions) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ewrap.Wrap(ErrInvalidTarget, err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ewrap.Wrapf(ErrInvalidTarget, "%q", rawURL)
	}
	if !bet.IsPositive() {
		return nil, ewrap.Wrapf(ErrInvalidBet, "got %s", bet.String())
	}
	q := u.Query()
	q.Set(betAmountParam, bet.String())
	u.RawQuery = q.Encode()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport, err := newTransport(opts.InsecureSkipVerify)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		}
	}
	return &Client{
		spinURL:    u.String(),
		bet:        bet,
		httpClient: httpClient,
	}, nil
}

// newTransport opens a fresh connection per call; HTTP/2 is re-enabled
// explicitly because a custom TLS config turns off the automatic upgrade.
func newTransport(insecureSkipVerify bool) (*http.Transport, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableKeepAlives:     true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // explicit opt-in for self-signed targets
		},
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, ewrap.Wrap(err, "configure http2")
	}
	return tr, nil
}

// URL returns the full spin URL including the wager parameter.
func (c *Client) URL() string {
	return c.spinURL
}

func (c *Client) Bet() decimal.Decimal {
	return c.bet
}

func (c *Client) Spin(ctx context.Context) SpinResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.spinURL, nil)
	if err != nil {
		return SpinResult{Outcome: OutcomeTransportError, Err: ewrap.Wrap(err, "build spin request")}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SpinResult{
			Outcome:  OutcomeTransportError,
			Duration: time.Since(start),
			Err:      ewrap.Wrap(err, "spin request"),
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return SpinResult{
			Outcome:    OutcomeDiscarded,
			StatusCode: resp.StatusCode,
			Duration:   time.Since(start),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return SpinResult{
			Outcome:    OutcomeTransportError,
			StatusCode: resp.StatusCode,
			Duration:   time.Since(start),
			Err:        ewrap.Wrap(err, "read spin response"),
		}
	}

	res := SpinResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
	parsed, err := DecodeSpinResponse(body)
	if err != nil {
		res.Outcome = OutcomeParseError
		res.Err = err
		return res
	}
	res.Outcome = OutcomeRecorded
	res.Matrix = parsed.Matrix
	res.Observation = Observation{
		WinAmount:      *parsed.WinAmount,
		CurrentBalance: *parsed.CurrentBalance,
	}
	return res
}

// DecodeSpinResponse parses and validates a spin body. Both amounts are
// required; a null counts as missing.
func DecodeSpinResponse(body []byte) (SpinResponse, error) {
	var parsed SpinResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SpinResponse{}, ewrap.Wrapf(ErrMalformedResponse, "decode: %v", err)
	}
	if parsed.WinAmount == nil {
		return SpinResponse{}, ewrap.Wrap(ErrMalformedResponse, "missing winAmount")
	}
	if parsed.CurrentBalance == nil {
		return SpinResponse{}, ewrap.Wrap(ErrMalformedResponse, "missing currentBalance")
	}
	return parsed, nil
}
