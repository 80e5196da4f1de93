package httpx

import "net/http"

//go:generate mockery --name=Client --dir=. --output=./mocks --filename=http_client_mock.go --case=underscore --with-expecter

type Client interface {
	Do(req *http.Request) (*http.Response, error)
}
