//go:build e2e

package auth

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// TestContext is the subset of the scenario context these steps use.
type TestContext interface {
	NewWallet(name string) (*ecdsa.PrivateKey, error)
	Wallet(name string) *ecdsa.PrivateKey
	Address(name string) string
	SetToken(name, token string)
	Request(actor, method, path string, body any) error
	StatusCode() int
	Body() string
	ResponseField(path string) (any, error)
}

// RegisterSteps registers wallet sign-in steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc, challenges: make(map[string]string)}

	ctx.Step(`^a wallet "([^"]*)"$`, steps.newWallet)
	ctx.Step(`^"([^"]*)" signs in$`, steps.signIn)
	ctx.Step(`^"([^"]*)" requests a challenge$`, steps.requestChallenge)
	ctx.Step(`^"([^"]*)" answers the challenge with the wallet of "([^"]*)"$`, steps.answerChallenge)
	ctx.Step(`^"([^"]*)" replays the last signature$`, steps.replay)
}

type authSteps struct {
	tc         TestContext
	challenges map[string]string
	last       map[string]string
}

func (s *authSteps) newWallet(ctx context.Context, name string) error {
	_, err := s.tc.NewWallet(name)
	return err
}

func (s *authSteps) requestChallenge(ctx context.Context, name string) error {
	if _, err := s.tc.NewWallet(name); err != nil {
		return err
	}
	if err := s.tc.Request("", http.MethodPost, "/auth/challenge", map[string]string{
		"principal": s.tc.Address(name),
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf("challenge for %s: status %d: %s", name, s.tc.StatusCode(), s.tc.Body())
	}
	msg, err := s.tc.ResponseField("message")
	if err != nil {
		return err
	}
	s.challenges[name] = msg.(string)
	return nil
}

func (s *authSteps) answerChallenge(ctx context.Context, name, signer string) error {
	msg, ok := s.challenges[name]
	if !ok {
		return fmt.Errorf("%s has no outstanding challenge", name)
	}
	key, err := s.tc.NewWallet(signer)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		return err
	}
	s.last = map[string]string{
		"principal": s.tc.Address(name),
		"signature": hexutil.Encode(sig),
	}
	return s.tc.Request("", http.MethodPost, "/auth/token", s.last)
}

func (s *authSteps) replay(ctx context.Context, name string) error {
	if s.last == nil || s.last["principal"] != s.tc.Address(name) {
		return fmt.Errorf("%s has not answered a challenge", name)
	}
	return s.tc.Request("", http.MethodPost, "/auth/token", s.last)
}

func (s *authSteps) signIn(ctx context.Context, name string) error {
	if err := s.requestChallenge(ctx, name); err != nil {
		return err
	}
	if err := s.answerChallenge(ctx, name, name); err != nil {
		return err
	}
	if s.tc.StatusCode() != http.StatusOK {
		return fmt.Errorf("sign in %s: status %d: %s", name, s.tc.StatusCode(), s.tc.Body())
	}
	token, err := s.tc.ResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetToken(name, token.(string))
	return nil
}
