package webserver

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

// decodeSS58 converts an SS58 address, or a 0x-prefixed hex public key, to
// the raw 32-byte public key. The checksum is verified.
func decodeSS58(addr string) ([]byte, error) {
	if strings.HasPrefix(addr, "0x") {
		raw, err := hex.DecodeString(addr[2:])
		if err != nil || len(raw) != 32 {
			return nil, errors.New("invalid hex public key")
		}
		return raw, nil
	}

	raw, err := base58.Decode(addr)
	if err != nil || len(raw) < 35 {
		return nil, errors.New("invalid ss58 address")
	}
	prefixLen := 1
	if raw[0]&0b0100_0000 != 0 {
		prefixLen = 2
	}
	if len(raw) != prefixLen+32+2 {
		return nil, errors.New("invalid ss58 address length")
	}

	body := raw[:prefixLen+32]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:2], raw[prefixLen+32:]) {
		return nil, errors.New("invalid ss58 checksum")
	}
	return raw[prefixLen : prefixLen+32], nil
}

// encodeSS58 renders a public key for the given network format.
func encodeSS58(pub []byte, format uint16) string {
	var body []byte
	if format < 64 {
		body = append(body, byte(format))
	} else {
		body = append(body,
			byte((format&0b0000_0000_1111_1100)>>2)|0b0100_0000,
			byte(format>>8)|byte((format&0b11)<<6),
		)
	}
	body = append(body, pub...)
	sum := ss58Checksum(body)
	return base58.Encode(append(body, sum[:2]...))
}

func ss58Checksum(body []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte{}, ss58Prefix...), body...))
}

func strip0x(s string) string {
	if len(s) > 1 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}

// verifySignature checks an sr25519 signature over the nonce. Browser
// extensions wrap the payload in <Bytes></Bytes>, so both forms are accepted.
func verifySignature(addr, sigHex, nonce string) error {
	pubKeyBytes, err := decodeSS58(addr)
	if err != nil {
		return err
	}

	sigBytes, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(sigBytes))
	}

	var pkRaw [32]byte
	copy(pkRaw[:], pubKeyBytes)
	var sigRaw [64]byte
	copy(sigRaw[:], sigBytes)

	var pk schnorrkel.PublicKey
	if err := pk.Decode(pkRaw); err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	var sig schnorrkel.Signature
	if err := sig.Decode(sigRaw); err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	for _, msg := range []string{nonce, "<Bytes>" + nonce + "</Bytes>"} {
		ok, err := pk.Verify(&sig, schnorrkel.NewSigningContext([]byte("substrate"), []byte(msg)))
		if err == nil && ok {
			return nil
		}
	}
	return errors.New("signature verification failed")
}

func issueJWT(addr string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}
