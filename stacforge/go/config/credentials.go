package config

import (
	"context"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"

	"go.stacforge.org/infra/go/sferr"
)

// Tokens are refreshed when they have less than this much lifetime left.
const tokenRefreshMargin = 5 * time.Minute

var (
	credentialOnce sync.Once
	credential     azcore.TokenCredential
	credentialErr  error
)

// Credential returns the process-wide credential, built for the configured
// cloud on first use.
func Credential() (azcore.TokenCredential, error) {
	credentialOnce.Do(func() {
		c, err := GetCloud("")
		if err != nil {
			credentialErr = err
			return
		}
		credential, credentialErr = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			ClientOptions: policy.ClientOptions{
				Cloud: c.Configuration,
			},
		})
	})
	return credential, credentialErr
}

// tokenSource adapts an azcore credential to oauth2.TokenSource for one
// scope, caching the token until close to expiry.
type tokenSource struct {
	mtx   sync.Mutex
	cred  azcore.TokenCredential
	scope string
	tok   *oauth2.Token
}

// NewTokenSource returns an oauth2.TokenSource minting tokens for the given
// scope with the process credential.
func NewTokenSource(cred azcore.TokenCredential, scope string) oauth2.TokenSource {
	return &tokenSource{
		cred:  cred,
		scope: scope,
	}
}

// Token implements oauth2.TokenSource.
func (t *tokenSource) Token() (*oauth2.Token, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.tok != nil && time.Until(t.tok.Expiry) > tokenRefreshMargin {
		return t.tok, nil
	}
	at, err := t.cred.GetToken(context.Background(), policy.TokenRequestOptions{
		Scopes: []string{t.scope},
	})
	if err != nil {
		return nil, sferr.Wrapf(err, "getting token for scope %s", t.scope)
	}
	t.tok = &oauth2.Token{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		Expiry:      at.ExpiresOn,
	}
	return t.tok, nil
}

// StorageAccessToken returns a raw storage data-plane token, for callers that
// pass tokens by value rather than through a transport.
func StorageAccessToken(ctx context.Context) (string, error) {
	c, err := GetCloud("")
	if err != nil {
		return "", err
	}
	cred, err := Credential()
	if err != nil {
		return "", err
	}
	at, err := cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{c.StorageScope},
	})
	if err != nil {
		return "", sferr.Wrapf(err, "getting storage token")
	}
	return at.Token, nil
}
