package input

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/rc1405/fiddler/internal/component"
	"github.com/rc1405/fiddler/internal/ferrors"
	"github.com/rc1405/fiddler/internal/log"
	"github.com/rc1405/fiddler/internal/message"
)

// HTTPServerInput accepts one message per POST request body. When
// acknowledgment is enabled, the HTTP response is held open until the
// message's terminal disposition is known and mapped back to a status code
// (200 ack, 500 nack); otherwise the request returns 200 immediately
// after enqueue.
type HTTPServerInput struct {
	addr           string
	path           string
	acknowledgment bool
	requestTimeout time.Duration

	srv *http.Server
	out chan *message.Message
	log log.Logger
}

func NewHTTPServerInput(cfg map[string]any) (component.Input, error) {
	addr, _ := cfg["address"].(string)
	if addr == "" {
		addr = ":8080"
	}
	path, _ := cfg["path"].(string)
	if path == "" {
		path = "/"
	}
	ack, _ := cfg["acknowledgment"].(bool)
	return &HTTPServerInput{
		addr:           addr,
		path:           path,
		acknowledgment: ack,
		requestTimeout: 30 * time.Second,
		out:            make(chan *message.Message, 64),
		log:            log.Default(),
	}, nil
}

func (h *HTTPServerInput) Open(ctx context.Context) error {
	h.log = log.FromContext(ctx)
	mux := http.NewServeMux()
	mux.HandleFunc(h.path, h.handle)
	h.srv = &http.Server{Addr: h.addr, Handler: mux}

	ln := make(chan error, 1)
	go func() {
		ln <- h.srv.ListenAndServe()
	}()
	select {
	case err := <-ln:
		if err != nil && err != http.ErrServerClosed {
			return ferrors.Fatal(err, "http_server input: listen")
		}
	case <-time.After(50 * time.Millisecond):
		// server accepted the socket and is serving; proceed.
	}
	return nil
}

func (h *HTTPServerInput) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	id, err := uuid.NewV4()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !h.acknowledgment {
		m := message.New(body, message.NewToken(func(message.Disposition, error) {}, message.NackOnAnyFailure))
		m.StreamID = id.String()
		select {
		case h.out <- m:
		default:
			h.log.Warn("http_server input: inbound queue full, dropping request")
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	done := make(chan error, 1)
	tok := message.NewToken(func(disp message.Disposition, reason error) {
		if disp == message.DispositionAck {
			done <- nil
		} else {
			done <- reason
		}
	}, message.NackOnAnyFailure)
	m := message.New(body, tok)
	m.StreamID = id.String()

	select {
	case h.out <- m:
	case <-time.After(h.requestTimeout):
		http.Error(w, "pipeline busy", http.StatusServiceUnavailable)
		return
	}

	select {
	case err := <-done:
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	case <-time.After(h.requestTimeout):
		http.Error(w, "processing timed out", http.StatusGatewayTimeout)
	}
}

func (h *HTTPServerInput) Read(ctx context.Context) (*message.Message, error) {
	select {
	case m, ok := <-h.out:
		if !ok {
			return nil, io.EOF
		}
		return m, nil
	case <-ctx.Done():
		return nil, io.EOF
	}
}

func (h *HTTPServerInput) Ack(context.Context, *message.Message) error         { return nil }
func (h *HTTPServerInput) Nack(context.Context, *message.Message, error) error { return nil }

func (h *HTTPServerInput) Close(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	return h.srv.Shutdown(ctx)
}
