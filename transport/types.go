package transport

import (
	"context"
	"time"
)

type Request struct {
	Method               string
	URL                  string
	Query                map[string]string
	Headers              map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Header looks a response header up case-insensitively.
func (r Response) Header(name string) string {
	for key, value := range r.Headers {
		if equalFoldASCII(key, name) {
			return value
		}
	}
	return ""
}

type Adapter interface {
	Kind() string
	Do(ctx context.Context, req Request) (Response, error)
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
