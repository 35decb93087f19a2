package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/httputil"
)

// RegisterPprof mounts the profiler under /debug/pprof, reachable only from
// allowed networks. An empty allowlist leaves it unmounted.
func RegisterPprof(r chi.Router, allowed []string, l *slog.Logger) {
	if len(allowed) == 0 {
		return
	}
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Use(IPAllowlist(allowed, l))
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.HandleFunc("/*", pprof.Index)
	})
}

// IPAllowlist answers 403 unless the peer address (never a forwarding
// header) falls inside one of allowed. Entries are CIDRs or bare addresses;
// unparsable ones are logged and skipped.
func IPAllowlist(allowed []string, l *slog.Logger) func(http.Handler) http.Handler {
	prefixes := make([]netip.Prefix, 0, len(allowed))
	for _, s := range allowed {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			addr, aerr := netip.ParseAddr(s)
			if aerr != nil {
				l.Warn("ignoring invalid allowlist entry", slog.String("entry", s))
				continue
			}
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
		prefixes = append(prefixes, p.Masked())
	}

	allows := func(remote string) bool {
		ap, err := netip.ParseAddrPort(remote)
		if err != nil {
			return false
		}
		ip := ap.Addr().Unmap()
		for _, p := range prefixes {
			if p.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allows(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			l.WarnContext(r.Context(), "profiler access denied",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			httputil.WriteError(w, r, apperrors.Forbidden("access restricted by IP allowlist"), l)
		})
	}
}
