package output

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/message"
)

// HTTPOutput POSTs each message's payload to a fixed URL, retrying 429/5xx
// responses with exponential backoff, grounded on the retry/backoff
// structuring in hejijunhao-lumber's httpclient.Client.GetJSON.
type HTTPOutput struct {
	url        string
	httpClient *http.Client
	maxRetries int
}

func NewHTTPOutput(cfg map[string]any) (component.Output, error) {
	url, _ := cfg["url"].(string)
	if url == "" {
		return nil, ferrors.New(ferrors.KindConfig, "http output: 'url' is required")
	}
	timeoutMS, _ := cfg["timeout_ms"].(int)
	if timeoutMS == 0 {
		timeoutMS = 10000
	}
	return &HTTPOutput{
		url:        url,
		httpClient: &http.Client{Timeout: time.Duration(timeoutMS) * time.Millisecond},
		maxRetries: 3,
	}, nil
}

func (o *HTTPOutput) Open(context.Context) error { return nil }

func (o *HTTPOutput) Write(ctx context.Context, m *message.Message) error {
	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(m.Bytes))
		if err != nil {
			return ferrors.Fatal(err, "http output: building request")
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			lastErr = ferrors.Transient(err, "http output: POST %s", o.url)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = ferrors.Transient(nil, "http output: status %d", resp.StatusCode)
			continue
		}
		return ferrors.Fatal(nil, "http output: status %d", resp.StatusCode)
	}
	return lastErr
}

func (o *HTTPOutput) WriteBatch(ctx context.Context, ms []*message.Message) error {
	for _, m := range ms {
		if err := o.Write(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (o *HTTPOutput) Batch() component.BatchPolicy { return component.BatchPolicy{} }

func (o *HTTPOutput) Flush(context.Context) error { return nil }

func (o *HTTPOutput) Close(context.Context) error { return nil }
