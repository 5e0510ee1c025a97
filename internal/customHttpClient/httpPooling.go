package customHttpClient

import (
	"net/http"

	"github.com/docuqa/docuqa/internal/config"
)

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// PooledClient is shared by outbound API callers so repeated embedding and
// summarizer calls reuse connections instead of paying a handshake each time.
func PooledClient() *http.Client {
	return &http.Client{Transport: customTransport}
}
