package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"ratelimit-proxy/middleware/ratelimit/application"
	"ratelimit-proxy/middleware/ratelimit/domain"
)

// DefaultRejectBody é o corpo devolvido ao cliente bloqueado.
const DefaultRejectBody = "Rate limit exceeded. Please try again later."

type KeyFunc func(r *http.Request) string

type Options struct {
	Store domain.LimiterStore
	Stats domain.StatsStore

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	RejectStatus int
	// RejectBody é escrito como texto puro na recusa. Vazio usa DefaultRejectBody.
	RejectBody string
	// RetryAfter zero significa recusa sem header Retry-After.
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

type limitInfo interface {
	Limit() float64
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr. A chave é a string crua do host, sem
		// normalização de endereço (IPv4-mapped IPv6 conta como outra chave).
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RejectBody == "" {
		opts.RejectBody = DefaultRejectBody
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if li, ok := opts.Store.(limitInfo); ok {
					w.Header().Set("X-RateLimit-Limit", formatFloat(li.Limit()))
				}
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}
			if !dec.Allowed {
				if dec.RetryAfter > 0 {
					w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				}
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(opts.RejectStatus)
				_, _ = w.Write([]byte(opts.RejectBody))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
