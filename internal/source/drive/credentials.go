package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauthjwt "golang.org/x/oauth2/jwt"
)

// Scope requested for the service account.
const Scope = "https://www.googleapis.com/auth/drive"

// ServiceAccount is a parsed service account key file.
type ServiceAccount struct {
	ClientEmail  string
	PrivateKeyID string
	TokenURI     string

	conf *oauthjwt.Config
}

type keyFile struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount reads and parses a service account key file. The
// private key is checked here so a bad key fails at startup instead of on
// the first token request.
func LoadServiceAccount(fs afero.Fs, path string) (*ServiceAccount, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if kf.ClientEmail == "" || kf.PrivateKey == "" {
		return nil, fmt.Errorf("credentials %s: client_email and private_key are required", path)
	}
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(kf.PrivateKey)); err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if conf.TokenURL == "" {
		conf.TokenURL = google.JWTTokenURL
	}
	return &ServiceAccount{
		ClientEmail:  conf.Email,
		PrivateKeyID: conf.PrivateKeyID,
		TokenURI:     conf.TokenURL,
		conf:         conf,
	}, nil
}

// tokenSource hands out cached access tokens. reset discards the cache
// after the API rejects a token.
type tokenSource struct {
	conf *oauthjwt.Config
	// ctx carries the HTTP client used for token requests.
	ctx context.Context

	mu  sync.Mutex
	src oauth2.TokenSource
}

func newTokenSource(sa *ServiceAccount, httpClient *http.Client) *tokenSource {
	ts := &tokenSource{
		conf: sa.conf,
		ctx:  context.WithValue(context.Background(), oauth2.HTTPClient, httpClient),
	}
	ts.reset()
	return ts
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	src := ts.src
	ts.mu.Unlock()
	return src.Token()
}

func (ts *tokenSource) reset() {
	ts.mu.Lock()
	ts.src = ts.conf.TokenSource(ts.ctx)
	ts.mu.Unlock()
}
