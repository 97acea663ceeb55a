package fitbit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// TokenCache is a token source whose refreshed tokens are written back.
type TokenCache interface {
	oauth2.TokenSource
	Refresh(*oauth2.Token) error
}

// NewJSONFileTokenCache loads the token stored at path.
func NewJSONFileTokenCache(path string) (TokenCache, error) {
	c := &jsonFileTokenCache{path: path}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	return c, nil
}

type jsonFileTokenCache struct {
	path  string
	mu    sync.Mutex
	token *oauth2.Token
}

func (c *jsonFileTokenCache) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return nil, fmt.Errorf("no token in %s", c.path)
	}
	return c.token, nil
}

func (c *jsonFileTokenCache) Refresh(tok *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	c.token = tok
	return nil
}

func (c *jsonFileTokenCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return fmt.Errorf("decoding token file: %w", err)
	}
	c.token = &tok
	return nil
}

// persistingTokenSource writes each new access token to the cache.
type persistingTokenSource struct {
	src   oauth2.TokenSource
	cache TokenCache
	mu    sync.Mutex
	last  string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.cache.Refresh(tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
