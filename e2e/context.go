//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"credreg/internal/app"
	"credreg/internal/platform/config"
	"credreg/internal/platform/logger"
)

// TestContext holds per-scenario state: a running registry, named wallets,
// their access tokens, the last response, and saved values.
type TestContext struct {
	server  *httptest.Server
	closeFn func()

	wallets map[string]*ecdsa.PrivateKey
	tokens  map[string]string
	saved   map[string]string

	lastStatus int
	lastBody   []byte
}

func NewTestContext() *TestContext {
	return &TestContext{
		wallets: make(map[string]*ecdsa.PrivateKey),
		tokens:  make(map[string]string),
		saved:   make(map[string]string),
	}
}

// Start boots an in-memory registry with adminName's wallet as the bootstrap Admin.
func (tc *TestContext) Start(adminName string) error {
	if _, err := tc.NewWallet(adminName); err != nil {
		return err
	}
	cfg := config.Server{
		Environment:        "test",
		Storage:            config.Storage{Backend: config.BackendMemory},
		BootstrapAdmin:     tc.Address(adminName),
		BootstrapAdminName: "E2E Admin",
		Auth: config.AuthConfig{
			JWTSigningKey: "e2e-signing-key",
			Issuer:        "credreg",
			Audience:      "credreg-api",
		},
	}
	registry, err := app.Build(context.Background(), cfg, logger.Discard())
	if err != nil {
		return err
	}
	tc.server = httptest.NewServer(registry.Handler)
	tc.closeFn = registry.Close
	return nil
}

func (tc *TestContext) Stop() {
	if tc.server != nil {
		tc.server.Close()
	}
	if tc.closeFn != nil {
		tc.closeFn()
	}
}

func (tc *TestContext) NewWallet(name string) (*ecdsa.PrivateKey, error) {
	if key, ok := tc.wallets[name]; ok {
		return key, nil
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	tc.wallets[name] = key
	return key, nil
}

func (tc *TestContext) Wallet(name string) *ecdsa.PrivateKey { return tc.wallets[name] }

func (tc *TestContext) Address(name string) string {
	key, ok := tc.wallets[name]
	if !ok {
		return ""
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func (tc *TestContext) SetToken(name, token string) { tc.tokens[name] = token }

func (tc *TestContext) Save(key, value string) { tc.saved[key] = value }

// Expand replaces {name} with a wallet address or a saved value.
func (tc *TestContext) Expand(s string) string {
	for name := range tc.wallets {
		s = strings.ReplaceAll(s, "{"+name+"}", tc.Address(name))
	}
	for k, v := range tc.saved {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

// Request sends a JSON request as actor. An empty actor sends no credentials.
func (tc *TestContext) Request(actor, method, path string, body any) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(tc.Expand(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.server.URL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		token, ok := tc.tokens[actor]
		if !ok {
			return fmt.Errorf("%s has not signed in", actor)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) StatusCode() int { return tc.lastStatus }

func (tc *TestContext) Body() string { return string(tc.lastBody) }

// ResponseField walks a dotted path through the last JSON body. Numeric
// segments index into arrays.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var cur any
	if err := json.Unmarshal(tc.lastBody, &cur); err != nil {
		return nil, fmt.Errorf("decode response: %w (body: %s)", err, tc.lastBody)
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", path, tc.lastBody)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %s", seg, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q at %s", path, seg)
		}
	}
	return cur, nil
}
