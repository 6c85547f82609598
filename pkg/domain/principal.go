package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "credreg/pkg/domain-errors"
)

// Principal identifies an actor by its account address. The canonical form is
// the EIP-55 checksummed hex string; construct via ParsePrincipal at trust
// boundaries so equality comparisons are case-stable.
type Principal string

// ParsePrincipal validates and canonicalizes an address. The zero address is
// rejected because it cannot hold a key.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal must be a 0x-prefixed address")
	}
	if !common.IsHexAddress(s) {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal is not a valid address")
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal must not be the zero address")
	}
	return Principal(addr.Hex()), nil
}

// PrincipalFromAddress converts a recovered signer address.
func PrincipalFromAddress(addr common.Address) Principal {
	return Principal(addr.Hex())
}

func (p Principal) String() string {
	return string(p)
}

func (p Principal) IsZero() bool {
	return p == ""
}

// Address returns the underlying account address.
func (p Principal) Address() common.Address {
	return common.HexToAddress(string(p))
}
