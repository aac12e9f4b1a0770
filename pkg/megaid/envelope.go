package megaid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Each block is a compact HS256 JWT: header.payload.signature.
// Numbers in metadata decode as json.Number so integers beyond 2^53 survive
// a read and the re-signing done by Update.
var (
	signingMethod = jwt.SigningMethodHS256
	tokenParser   = jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithJSONNumber(),
	)
	segmentCodec = base64.RawURLEncoding.Strict()
)

func signBlock(block Block, claims jwt.Claims, key []byte) (string, error) {
	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(key)
	if err != nil {
		return "", &Error{Kind: ErrInvalidMetadata, Block: block, Msg: "failed to sign", Err: err}
	}
	return token, nil
}

// verifyBlock checks the envelope structure and signature of token and decodes
// its payload into claims.
func verifyBlock(block Block, token string, key []byte, claims jwt.Claims) error {
	if err := checkSegments(token); err != nil {
		return &Error{Kind: ErrTokenMalformed, Block: block, Err: err}
	}

	_, err := tokenParser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return &Error{Kind: classify(err), Block: block, Err: err}
	}
	return nil
}

// checkSegments rejects tokens whose segments are not canonical base64url.
// Without it, altering the unused low bits of the final signature character
// would decode to the same signature and go unnoticed.
func checkSegments(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("expected 3 token segments, got %d", len(parts))
	}
	for i, part := range parts {
		if _, err := segmentCodec.DecodeString(part); err != nil {
			return fmt.Errorf("segment %d is not valid base64url: %w", i+1, err)
		}
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}
