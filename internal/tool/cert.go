package tool

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"time"
)

// Certificate describes the self-signed certificate of the status API.
type Certificate struct {
	Organization string
	CommonName   string
	Hostnames    []string
	Validity     time.Duration
}

// DefaultHostnames are always added to the certificate names.
var DefaultHostnames = []string{"localhost", "127.0.0.1", "::1"}

// GenerateTlsCertificate writes a new ECDSA P-256 key and its self-signed
// certificate. The key file is only readable by its owner.
func GenerateTlsCertificate(certificate Certificate, keyFilename, certFilename string) error {
	notBefore := time.Now()
	validity := certificate.Validity
	if validity <= 0 {
		validity = 10 * 365 * 24 * time.Hour
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{certificate.Organization},
			CommonName:   certificate.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	seen := make(map[string]bool)
	for _, h := range append(append([]string{}, DefaultHostnames...), certificate.Hostnames...) {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return err
	}

	rawKey, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	if err = writePem(keyFilename, "EC PRIVATE KEY", rawKey, 0600); err != nil {
		return err
	}
	return writePem(certFilename, "CERTIFICATE", derBytes, 0644)
}

func writePem(filename string, blockType string, bytes []byte, perm os.FileMode) error {
	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err = pem.Encode(file, &pem.Block{Type: blockType, Bytes: bytes}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
