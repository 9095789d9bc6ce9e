package contracts

import (
	"context"
	"io"
	"net/http"
	"time"
)

type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (*FetchResponse, error)
}

type FetchRequest struct {
	Method      string
	URL         string
	IfNoneMatch string
}

func GetRequest(address string) FetchRequest {
	return FetchRequest{Method: http.MethodGet, URL: address}
}

func ConditionalHeadRequest(address, tag string) FetchRequest {
	return FetchRequest{Method: http.MethodHead, URL: address, IfNoneMatch: tag}
}

// FetchResponse is returned for 2xx and 304 statuses only; anything else is
// reported as an *Error by the Fetcher.
type FetchResponse struct {
	StatusCode    int
	ETag          string
	LastModified  time.Time
	ContentLength int64
	Body          io.ReadCloser
}

func (this *FetchResponse) NotModified() bool {
	return this.StatusCode == http.StatusNotModified
}

func (this *FetchResponse) Close() error {
	if this == nil || this.Body == nil {
		return nil
	}
	return this.Body.Close()
}
