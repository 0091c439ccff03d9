package mail

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/emersion/go-msgauth/dkim"
)

var errDKIMKey = errors.New("pkgmail: unusable dkim private key")

func signDKIM(raw []byte, d DKIM) ([]byte, error) {
	if d.DomainName == "" || d.KeySelector == "" {
		return nil, fmt.Errorf("%w: domain name and key selector are required", errDKIMKey)
	}

	signer, err := parseSigner(d.PrivateKey)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = dkim.Sign(&out, bytes.NewReader(raw), &dkim.SignOptions{
		Domain:                 d.DomainName,
		Selector:               d.KeySelector,
		Signer:                 signer,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
	})
	if err != nil {
		return nil, fmt.Errorf("pkgmail: dkim sign: %w", err)
	}
	return out.Bytes(), nil
}

// parseSigner accepts PKCS#1 RSA and PKCS#8 RSA or Ed25519 keys.
func parseSigner(keyPEM string) (crypto.Signer, error) {
	block, _ := pem.Decode([]byte(keyPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", errDKIMKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDKIMKey, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot sign", errDKIMKey, key)
	}
	return signer, nil
}
