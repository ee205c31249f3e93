package tool

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"testing"
)

func TestGenerateTlsCertificate(t *testing.T) {
	dir := t.TempDir()
	keyFilename := filepath.Join(dir, "key.pem")
	certFilename := filepath.Join(dir, "cert.pem")

	exists, err := IsFileExists(certFilename)
	if err != nil || exists {
		t.Fatalf("IsFileExists before generation = %v, %v", exists, err)
	}

	err = GenerateTlsCertificate(Certificate{Organization: "tabelo", CommonName: "Tabelo Server", Hostnames: []string{"tabelo.local", "localhost"}}, keyFilename, certFilename)
	if err != nil {
		t.Fatalf("GenerateTlsCertificate: %v", err)
	}

	pair, err := tls.LoadX509KeyPair(certFilename, keyFilename)
	if err != nil {
		t.Fatalf("generated files are not a key pair: %v", err)
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if err := cert.VerifyHostname("tabelo.local"); err != nil {
		t.Errorf("VerifyHostname: %v", err)
	}
	if err := cert.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("VerifyHostname: %v", err)
	}
	if len(cert.DNSNames) != 2 {
		t.Errorf("DNSNames = %v, duplicates should be dropped", cert.DNSNames)
	}

	exists, err = IsFileExists(keyFilename)
	if err != nil || !exists {
		t.Errorf("IsFileExists after generation = %v, %v", exists, err)
	}
}
