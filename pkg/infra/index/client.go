package index

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

const (
	defaultIssuer = "https://drover.dev"
	idTokenTTL    = 5 * time.Minute
)

type client struct {
	httpClient *http.Client
	issuer     string
	signingKey jwk.Key
}

// Option customizes the index client.
type Option func(*client)

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(x *client) {
		x.httpClient = httpClient
	}
}

// WithIssuer sets the iss claim of minted identity tokens.
func WithIssuer(issuer string) Option {
	return func(x *client) {
		x.issuer = issuer
	}
}

// WithSigningKey sets the private key used to sign identity tokens for
// trusted publishing.
func WithSigningKey(key jwk.Key) Option {
	return func(x *client) {
		x.signingKey = key
	}
}

// New creates an IndexPublisher speaking the package index upload API.
func New(opts ...Option) interfaces.IndexPublisher {
	x := &client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		issuer:     defaultIssuer,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// LoadSigningKey reads a PEM-encoded private key for identity token
// signing.
func LoadSigningKey(path string) (jwk.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read signing key", goerr.V("path", path))
	}
	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse signing key", goerr.V("path", path))
	}
	return key, nil
}

// Upload pushes one artifact to the index with a legacy multipart upload.
// The token goes into HTTP basic auth under the __token__ user.
func (x *client) Upload(ctx context.Context, cfg *model.PublishConfig, artifact *model.Artifact, r io.Reader, token string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		":action":          "file_upload",
		"protocol_version": "1",
		"sha256_digest":    artifact.SHA256,
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return goerr.Wrap(err, "failed to write form field", goerr.V("field", key))
		}
	}

	fw, err := mw.CreateFormFile("content", artifact.Name)
	if err != nil {
		return goerr.Wrap(err, "failed to create form file")
	}
	if _, err := io.Copy(fw, r); err != nil {
		return goerr.Wrap(err, "failed to read artifact content", goerr.V("name", artifact.Name))
	}
	if err := mw.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Index, &body)
	if err != nil {
		return goerr.Wrap(err, "failed to create upload request", goerr.V("index", cfg.Index))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("__token__", token)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to upload artifact", goerr.V("index", cfg.Index))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return goerr.New("index rejected upload",
			goerr.V("code", resp.StatusCode),
			goerr.V("name", artifact.Name),
			goerr.V("response", string(snippet)))
	}
	return nil
}

// MintToken signs a short-lived identity token for the push event and
// exchanges it for an upload token at the index.
func (x *client) MintToken(ctx context.Context, cfg *model.PublishConfig, event *model.PushEvent) (string, error) {
	if cfg.OIDC == nil {
		return "", goerr.New("oidc publishing is not configured")
	}
	if x.signingKey == nil {
		return "", goerr.New("oidc signing key is not configured")
	}

	subject := cfg.OIDC.Subject
	if subject == "" {
		subject = "repo:" + event.FullRepo()
	}

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(x.issuer).
		Subject(subject).
		Audience([]string{cfg.OIDC.Audience}).
		IssuedAt(now).
		Expiration(now.Add(idTokenTTL)).
		Claim("repository", event.FullRepo()).
		Claim("ref", event.Ref).
		Claim("sha", event.SHA).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build identity token")
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, x.signingKey))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign identity token")
	}

	mintURL, err := x.mintURL(cfg)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]string{"token": string(signed)})
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode mint request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mintURL, bytes.NewReader(payload))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create mint request", goerr.V("url", mintURL))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to mint upload token", goerr.V("url", mintURL))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", goerr.New("index refused to mint a token",
			goerr.V("code", resp.StatusCode),
			goerr.V("response", string(snippet)))
	}

	var minted struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&minted); err != nil {
		return "", goerr.Wrap(err, "failed to decode mint response")
	}
	if minted.Token == "" {
		return "", goerr.New("mint response did not contain a token")
	}
	return minted.Token, nil
}

func (x *client) mintURL(cfg *model.PublishConfig) (string, error) {
	if cfg.OIDC.MintURL != "" {
		return cfg.OIDC.MintURL, nil
	}
	u, err := url.Parse(cfg.Index)
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse index URL", goerr.V("index", cfg.Index))
	}
	u.Path = "/_/oidc/mint-token"
	u.RawQuery = ""
	return u.String(), nil
}
