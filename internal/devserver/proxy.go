package devserver

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

// newProxy forwards requests to the application server and injects the
// live-reload script into HTML pages when tag is non-empty.
func newProxy(target *url.URL, tag string, adapter *ferrors.HTTPErrorAdapter) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Bodies must arrive uncompressed to be rewritten. An explicit value
			// also keeps the transport from negotiating gzip on its own.
			if tag != "" {
				pr.Out.Header.Set("Accept-Encoding", "identity")
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if tag == "" {
				return nil
			}
			return injectResponse(resp, tag)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			adapter.WriteErrorResponse(w, r, ferrors.WrapError(err, ferrors.CategoryNetwork, "application server unavailable").
				WithContext("upstream", target.String()).
				Build())
		},
	}
}
