// Package sigv4 provides an http.RoundTripper that signs outbound requests
// with AWS Signature Version 4, for services that authenticate with IAM
// such as AgentCore runtime and identity endpoints.
package sigv4

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Transport signs each request before delegating to the wrapped
// RoundTripper.
type Transport struct {
	base        http.RoundTripper
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	service     string
	region      string
}

// NewTransport builds a signing transport. base may be nil, in which case
// http.DefaultTransport is used.
func NewTransport(base http.RoundTripper, credentials aws.CredentialsProvider, service, region string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:        base,
		credentials: credentials,
		signer:      v4.NewSigner(),
		service:     service,
		region:      region,
	}
}

// Client returns an http.Client using the transport.
func (t *Transport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	signed, err := t.sign(req)
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(signed)
}

func (t *Transport) sign(req *http.Request) (*http.Request, error) {
	ctx := req.Context()

	creds, err := t.credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieving AWS credentials: %w", err)
	}

	// The payload hash covers the full body, so buffer and restore it.
	payloadHash := emptyPayloadHash
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body for signing: %w", err)
		}
		if err := req.Body.Close(); err != nil {
			return nil, err
		}
		sum := sha256.Sum256(body)
		payloadHash = hex.EncodeToString(sum[:])
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}

	signed := req.Clone(ctx)

	// The Connection header is not part of the server-side signature
	// calculation and causes a mismatch if signed.
	signed.Header.Del("Connection")

	if err := t.signer.SignHTTP(ctx, creds, signed, payloadHash, t.service, t.region, time.Now()); err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	return signed, nil
}

// SignRequest signs a single request in place using the given credentials
// provider. Useful outside of a client transport.
func SignRequest(ctx context.Context, req *http.Request, credentials aws.CredentialsProvider, service, region string) error {
	t := NewTransport(nil, credentials, service, region)
	signed, err := t.sign(req)
	if err != nil {
		return err
	}
	*req = *signed
	return nil
}
