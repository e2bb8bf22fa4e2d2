package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"koko/stream-loadgen/internal/telemetry"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	DefaultPath = "/stream"
	ContentType = "application/json"
)

// Stream posts one freshly generated telemetry record per invocation. It
// keeps no state besides its generator and never inspects the response.
type Stream struct {
	url    string
	path   string
	client *http.Client
	gen    *telemetry.Generator
}

type Option func(*Stream)

func WithPath(path string) Option {
	return func(s *Stream) {
		s.path = path
	}
}

func WithClient(client *http.Client) Option {
	return func(s *Stream) {
		s.client = client
	}
}

func WithGenerator(gen *telemetry.Generator) Option {
	return func(s *Stream) {
		s.gen = gen
	}
}

func NewStream(base string, opts ...Option) (*Stream, error) {
	s := &Stream{path: DefaultPath}
	for _, opt := range opts {
		opt(s)
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid target url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid target url %q: scheme and host are required", base)
	}
	s.url = u.JoinPath(s.path).String()
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.gen == nil {
		s.gen = telemetry.NewGenerator()
	}
	return s, nil
}

func (s *Stream) URL() string {
	return s.url
}

// Body generates a record and returns its JSON encoding.
func (s *Stream) Body() ([]byte, error) {
	return json.Marshal(s.gen.Generate())
}

// Do sends a single record and returns the response status code. Non-2xx
// responses are not errors here; accounting is left to the caller.
func (s *Stream) Do(ctx context.Context) (int, error) {
	body, err := s.Body()
	if err != nil {
		return 0, fmt.Errorf("failed to encode telemetry record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", ContentType)
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Targeter exposes the task to a vegeta attacker. Every call yields a new
// record.
func (s *Stream) Targeter() vegeta.Targeter {
	return func(tgt *vegeta.Target) error {
		if tgt == nil {
			return vegeta.ErrNilTarget
		}
		body, err := s.Body()
		if err != nil {
			return err
		}
		tgt.Method = http.MethodPost
		tgt.URL = s.url
		tgt.Body = body
		tgt.Header = http.Header{"Content-Type": []string{ContentType}}
		return nil
	}
}
