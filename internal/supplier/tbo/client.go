// Package tbo is the supplier adapter for the TBO air API: JSON over HTTP
// with a per-day token, a search trace id and per-result indexes.
package tbo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"flight-aggregator/internal/cache"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/supplier"
)

// Code is the provider code TBO results and credentials are stored under
const Code = "TBO"

const (
	defaultTimeout       = 45 * time.Second
	defaultMaxPairs      = 200
	defaultCredentialTTL = 5 * time.Minute

	credentialKey = "cred:" + Code

	// solutionSep joins the search trace id and the result index
	solutionSep = "~"
)

// CredentialSource reads supplier credentials from the ledger
type CredentialSource interface {
	SupplierCredential(ctx context.Context, supplierCode, module string) (*models.SupplierCredential, error)
}

type Options struct {
	EndUserIP string
	Timeout   time.Duration
	// MaxReturnPairs caps the outbound x inbound combinations built from a
	// split round-trip search
	MaxReturnPairs int
	// CredentialTTL bounds how long a supplier_credentials row is reused
	CredentialTTL time.Duration
}

type Adapter struct {
	creds  CredentialSource
	cache  cache.Cache
	tokens *supplier.TokenCache
	http   *http.Client
	log    *logrus.Logger
	opts   Options
}

// storedCredential is the cached form of a credential row
type storedCredential struct {
	BaseURL  string `json:"baseUrl"`
	ClientID string `json:"clientId"`
	UserName string `json:"userName"`
	Password string `json:"password"`
}

var _ supplier.Adapter = (*Adapter)(nil)

func New(creds CredentialSource, c cache.Cache, log *logrus.Logger, opts Options) *Adapter {
	if opts.CredentialTTL <= 0 {
		opts.CredentialTTL = defaultCredentialTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxReturnPairs <= 0 {
		opts.MaxReturnPairs = defaultMaxPairs
	}
	return &Adapter{
		creds:  creds,
		cache:  c,
		tokens: supplier.NewTokenCache(c),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:  log,
		opts: opts,
	}
}

func (a *Adapter) Code() string { return Code }

// credential returns the active credential row, re-read from the ledger once
// CredentialTTL has passed or after the supplier rejected it
func (a *Adapter) credential(ctx context.Context) (*storedCredential, error) {
	raw, err := a.cache.Get(ctx, credentialKey)
	if err == nil {
		var cred storedCredential
		if json.Unmarshal([]byte(raw), &cred) == nil && cred.BaseURL != "" {
			return &cred, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		a.log.WithError(err).WithField("supplier", Code).Warn("credential cache unavailable")
	}

	row, err := a.creds.SupplierCredential(ctx, Code, models.ModuleFlight)
	if err != nil {
		return nil, errors.Wrap(err, "load tbo credential")
	}
	cred := &storedCredential{
		BaseURL:  strings.TrimRight(row.BaseURL, "/"),
		ClientID: row.ClientID,
		UserName: row.UserName,
		Password: row.Password,
	}
	data, err := json.Marshal(cred)
	if err == nil {
		err = a.cache.Set(ctx, credentialKey, string(data), a.opts.CredentialTTL)
	}
	if err != nil {
		a.log.WithError(err).WithField("supplier", Code).Warn("failed to cache credential")
	}
	return cred, nil
}

func (a *Adapter) dropCredential(ctx context.Context) {
	if err := a.cache.Delete(ctx, credentialKey); err != nil {
		a.log.WithError(err).WithField("supplier", Code).Warn("failed to drop cached credential")
	}
}

// authenticate fetches a token. A rejected login drops the cached credential
// and retries once with the row currently in the ledger.
func (a *Adapter) authenticate(ctx context.Context) (string, error) {
	for attempt := 0; ; attempt++ {
		cred, err := a.credential(ctx)
		if err != nil {
			return "", err
		}
		_, raw, err := a.post(ctx, cred.BaseURL+"/Authenticate", authRequest{
			ClientID:  cred.ClientID,
			UserName:  cred.UserName,
			Password:  cred.Password,
			EndUserIP: a.opts.EndUserIP,
		})
		if err != nil {
			return "", err
		}
		var resp authResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", errors.Wrap(err, "decode authenticate response")
		}
		if resp.Status == statusSuccessful && resp.TokenID != "" {
			a.log.WithField("supplier", Code).Info("supplier token refreshed")
			return resp.TokenID, nil
		}

		a.dropCredential(ctx)
		if attempt > 0 {
			return "", errors.Errorf("authenticate: %s (code %d)", resp.Error.ErrorMessage, resp.Error.ErrorCode)
		}
		a.log.WithField("supplier", Code).Warn("supplier rejected credential, reloading")
	}
}

// exchange sends the body built for the current token and decodes the reply
// into out. An invalid-session reply drops the token and repeats the call once.
func (a *Adapter) exchange(ctx context.Context, path string, build func(token string) interface{}, out interface{}) (json.RawMessage, json.RawMessage, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return nil, nil, err
	}

	for attempt := 0; ; attempt++ {
		token, err := a.tokens.Token(ctx, Code, a.authenticate)
		if err != nil {
			return nil, nil, err
		}
		req, raw, err := a.post(ctx, cred.BaseURL+path, build(token))
		if err != nil {
			return req, raw, err
		}

		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Response.Error.ErrorCode == errInvalidSession && attempt == 0 {
			if err := a.tokens.Invalidate(ctx, Code); err != nil {
				a.log.WithError(err).Warn("failed to drop supplier token")
			}
			continue
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return req, raw, errors.Wrapf(err, "decode %s response", path)
		}
		return req, raw, nil
	}
}

func (a *Adapter) post(ctx context.Context, url string, body interface{}) (json.RawMessage, json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return payload, nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return payload, nil, errors.Wrapf(err, "post %s", url)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return payload, nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return payload, raw, errors.Errorf("%s returned http %d", url, resp.StatusCode)
	}
	if !json.Valid(raw) {
		return payload, raw, errors.Errorf("%s returned a non-json body", url)
	}
	return payload, raw, nil
}

func solutionID(traceID, resultIndex string) string {
	return traceID + solutionSep + resultIndex
}

func parseSolutionID(id string) (traceID, resultIndex string, err error) {
	traceID, resultIndex, ok := strings.Cut(id, solutionSep)
	if !ok || traceID == "" || resultIndex == "" {
		return "", "", errors.Errorf("malformed solution id %q", id)
	}
	return traceID, resultIndex, nil
}
