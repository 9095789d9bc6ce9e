package shell

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/smarty/jarsmith/contracts"
)

// NewHTTPClient honours an explicit proxy URL and otherwise the usual
// HTTP_PROXY/HTTPS_PROXY environment variables.
func NewHTTPClient(proxy string) (*http.Client, error) {
	proxyFunc := http.ProxyFromEnvironment
	if proxy != "" {
		address, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		proxyFunc = http.ProxyURL(address)
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: proxyFunc,
			DialContext: (&net.Dialer{
				Timeout:   16 * time.Second,
				KeepAlive: 32 * time.Second,
			}).DialContext,
			MaxIdleConns:          32,
			IdleConnTimeout:       32 * time.Second,
			TLSHandshakeTimeout:   16 * time.Second,
			ResponseHeaderTimeout: 32 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}, nil
}

type HTTPFetcher struct {
	client *http.Client
	logger *log.Logger
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client, logger: log.Default()}
}

func (this *HTTPFetcher) Fetch(ctx context.Context, request contracts.FetchRequest) (*contracts.FetchResponse, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, request.URL, nil)
	if err != nil {
		return nil, contracts.NewError(contracts.FormatError, "fetch", request.URL, err)
	}
	if request.IfNoneMatch != "" {
		httpRequest.Header.Set("If-None-Match", quoteTag(request.IfNoneMatch))
	}

	response, err := this.client.Do(httpRequest)
	if err != nil {
		return nil, contracts.NewError(contracts.NetworkError, "fetch", request.URL, err)
	}

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300, response.StatusCode == http.StatusNotModified:
	case response.StatusCode == http.StatusNotFound, response.StatusCode == http.StatusGone, response.StatusCode == http.StatusForbidden:
		_ = response.Body.Close()
		return nil, contracts.NewError(contracts.NotFoundError, "fetch", request.URL, fmt.Errorf("unexpected status code: %s", response.Status))
	default:
		this.dump(httpRequest, response)
		_ = response.Body.Close()
		return nil, contracts.NewError(contracts.NetworkError, "fetch", request.URL, fmt.Errorf("unexpected status code: %s", response.Status))
	}

	result := &contracts.FetchResponse{
		StatusCode:    response.StatusCode,
		ETag:          response.Header.Get("ETag"),
		ContentLength: response.ContentLength,
		Body:          response.Body,
	}
	if modified, err := http.ParseTime(response.Header.Get("Last-Modified")); err == nil {
		result.LastModified = modified
	}
	if request.Method == http.MethodHead || response.StatusCode == http.StatusNotModified {
		_ = response.Body.Close()
		result.Body = nil
	}
	return result, nil
}

func (this *HTTPFetcher) dump(request *http.Request, response *http.Response) {
	requestDump, _ := httputil.DumpRequestOut(request, false)
	responseDump, _ := httputil.DumpResponse(response, false)
	this.logger.Printf("[WARN] unexpected status code: \nrequest: \n%s\nresponse:\n%s", requestDump, responseDump)
}

func quoteTag(tag string) string {
	if strings.HasPrefix(tag, `"`) || strings.HasPrefix(tag, "W/") {
		return tag
	}
	return `"` + tag + `"`
}
