package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrKeyLoad wraps any failure while parsing the RSA key pair. Key loading
// happens once at startup; callers are expected to treat it as fatal.
var ErrKeyLoad = errors.New("key load failed")

// LoadKeys parses a PEM-encoded RSA key pair used to sign and verify session
// tokens. PEM armor and whitespace are stripped before decoding so that keys
// pasted into environment variables (with or without newlines) load the same
// way. The private key must be PKCS#8 or PKCS#1, the public key PKIX or
// PKCS#1, and both must be RSA.
func LoadKeys(privatePEM, publicPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privDER, err := decodePEMBody(privatePEM)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: private key: %v", ErrKeyLoad, err)
	}
	priv, err := parseRSAPrivate(privDER)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: private key: %v", ErrKeyLoad, err)
	}

	pubDER, err := decodePEMBody(publicPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: public key: %v", ErrKeyLoad, err)
	}
	pub, err := parseRSAPublic(pubDER)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: public key: %v", ErrKeyLoad, err)
	}
	return priv, pub, nil
}

// decodePEMBody drops the BEGIN/END delimiter lines and all whitespace, then
// base64-decodes what remains.
func decodePEMBody(pemText string) ([]byte, error) {
	if strings.TrimSpace(pemText) == "" {
		return nil, errors.New("empty PEM input")
	}
	var b strings.Builder
	for _, line := range strings.Split(pemText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(line)
	}
	body := strings.Join(strings.Fields(b.String()), "")
	if body == "" {
		return nil, errors.New("no base64 body between PEM delimiters")
	}
	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %v", err)
	}
	return der, nil
}

func parseRSAPrivate(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an RSA private key")
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %v", err)
	}
	return key, nil
}

func parseRSAPublic(der []byte) (*rsa.PublicKey, error) {
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not an RSA public key")
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %v", err)
	}
	return key, nil
}
