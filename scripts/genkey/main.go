// genkey generates an Ed25519 key pair for signing admin console sessions.
//
// Usage (run from the repo root):
//
//	go run ./scripts/genkey [-dir data]
//
// Writes <dir>/jwt_private.pem and <dir>/jwt_public.pem, both mode 0600.
// Point VITRINE_JWT_PRIVATE_KEY and VITRINE_JWT_PUBLIC_KEY at them.
//
// Without persistent keys the server generates ephemeral ones on every
// start, which logs every admin out on restart.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	dir := flag.String("dir", "data", "output directory")
	flag.Parse()

	if err := generate(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func generate(dir string) error {
	privPath := filepath.Join(dir, "jwt_private.pem")
	pubPath := filepath.Join(dir, "jwt_public.pem")

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	// Refuse to overwrite: rotating keys invalidates live sessions.
	for _, path := range []string{privPath, pubPath} {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; delete it first to rotate keys", path)
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}

	if err := writePEM(privPath, "PRIVATE KEY", privDER); err != nil {
		return err
	}
	if err := writePEM(pubPath, "PUBLIC KEY", pubDER); err != nil {
		return err
	}
	fmt.Printf("wrote %s\nwrote %s\n", privPath, pubPath)
	return nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
