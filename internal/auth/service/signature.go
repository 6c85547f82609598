package service

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	id "credreg/pkg/domain"
)

var errBadSignature = errors.New("malformed signature")

// RecoverSigner returns the principal whose key produced the EIP-191
// personal_sign signature over message. Both 0/1 and 27/28 recovery ids
// are accepted.
func RecoverSigner(message, signature string) (id.Principal, error) {
	raw, err := hexutil.Decode(signature)
	if err != nil || len(raw) != crypto.SignatureLength {
		return "", errBadSignature
	}
	sig := make([]byte, len(raw))
	copy(sig, raw)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", errBadSignature
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", err
	}
	return id.PrincipalFromAddress(crypto.PubkeyToAddress(*pub)), nil
}
