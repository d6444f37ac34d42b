package proxy

import (
	"io"
	"net/http"
	"time"
)

// DefaultTimeout é o prazo fixo da chamada ao upstream.
const DefaultTimeout = 5 * time.Second

const errorBodyPrefix = "Error forwarding request: "

// Forwarder encaminha GETs para um upstream fixo.
//
// O alvo é a concatenação literal da base configurada com o path recebido,
// com a query string original reanexada sem modificação. O corpo e os
// headers da resposta do upstream são repassados como vieram (valores
// duplicados preservados).
type Forwarder struct {
	upstream string
	client   *http.Client
}

type Option func(*Forwarder)

// WithTimeout troca o prazo fixo da chamada ao upstream.
func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) { f.client.Timeout = d }
}

// WithTransport troca o RoundTripper do client (ex: para testes).
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Forwarder) { f.client.Transport = rt }
}

func NewForwarder(upstream string, opts ...Option) *Forwarder {
	f := &Forwarder{
		upstream: upstream,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		// fora do contrato do pipeline; a camada de servidor decide o resto
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}

	target := f.upstream + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	// sem contexto da requisição de entrada: o único prazo é o timeout
	// fixo do client; cancelamento do cliente não se propaga ao upstream.
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		writeForwardError(w, err)
		return
	}

	resp, err := f.client.Do(req)
	if err != nil {
		writeForwardError(w, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func writeForwardError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, errorBodyPrefix+err.Error())
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
