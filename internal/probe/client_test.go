package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"
	"github.com/shopspring/decimal"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestClientSpinRecorded(t *testing.T) {
	var gotMethod, gotBet string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotBet = r.URL.Query().Get("betAmount")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matrix":[[1,2,3],[4,5,6]],"winAmount":12.5,"currentBalance":"1002.5"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/api/Player/spin/p1", decimal.NewFromInt(10), ClientOptions{Timeout: time.Second})
	assert.NoError(t, err)

	res := client.Spin(context.Background())
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Nil(t, res.Err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "10", gotBet)
	assert.Equal(t, "12.5", res.Observation.WinAmount.String())
	assert.Equal(t, "1002.5", res.Observation.CurrentBalance.String())
	assert.Equal(t, 2, len(res.Matrix))
}

func TestClientKeepsExistingQuery(t *testing.T) {
	client, err := NewClient("https://example.test/spin?player=abc", decimal.RequireFromString("2.5"), ClientOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "https://example.test/spin?betAmount=2.5&player=abc", client.URL())
}

func TestClientSpinNonOKIsDiscarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Player not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, decimal.NewFromInt(10), ClientOptions{})
	assert.NoError(t, err)

	res := client.Spin(context.Background())
	assert.Equal(t, OutcomeDiscarded, res.Outcome)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Nil(t, res.Err)
}

func TestClientSpinParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing winAmount", `{"currentBalance":100}`},
		{"missing currentBalance", `{"winAmount":0}`},
		{"null amount", `{"winAmount":null,"currentBalance":100}`},
		{"string garbage", `{"winAmount":"lots","currentBalance":100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(server.URL, decimal.NewFromInt(1), ClientOptions{})
			assert.NoError(t, err)
			res := client.Spin(context.Background())
			assert.Equal(t, OutcomeParseError, res.Outcome)
			assert.True(t, errors.Is(res.Err, ErrMalformedResponse))
		})
	}
}

func TestClientSpinTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	client, err := NewClient("https://slot.test/spin", decimal.NewFromInt(10), ClientOptions{
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, boom
		})},
	})
	assert.NoError(t, err)

	res := client.Spin(context.Background())
	assert.Equal(t, OutcomeTransportError, res.Outcome)
	assert.True(t, errors.Is(res.Err, boom))
}

func TestClientTLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"winAmount":0,"currentBalance":90}`))
	}))
	defer server.Close()

	strict, err := NewClient(server.URL, decimal.NewFromInt(10), ClientOptions{Timeout: 2 * time.Second})
	assert.NoError(t, err)
	res := strict.Spin(context.Background())
	assert.Equal(t, OutcomeTransportError, res.Outcome)

	insecure, err := NewClient(server.URL, decimal.NewFromInt(10), ClientOptions{Timeout: 2 * time.Second, InsecureSkipVerify: true})
	assert.NoError(t, err)
	res = insecure.Spin(context.Background())
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	assert.Equal(t, "90", res.Observation.CurrentBalance.String())
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("ftp://host/spin", decimal.NewFromInt(1), ClientOptions{})
	assert.True(t, errors.Is(err, ErrInvalidTarget))

	_, err = NewClient("https://host/spin", decimal.Zero, ClientOptions{})
	assert.True(t, errors.Is(err, ErrInvalidBet))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "recorded", OutcomeRecorded.String())
	assert.Equal(t, "discarded", OutcomeDiscarded.String())
	assert.Equal(t, "parse_error", OutcomeParseError.String())
	assert.Equal(t, "transport_error", OutcomeTransportError.String())
}
