package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/medsecure/vault/pkg/encryption"
)

func main() {
	bits := flag.Int("bits", encryption.DefaultRSABits, "RSA key size in bits")
	privPath := flag.String("private", "private_key.pem", "private key output path")
	pubPath := flag.String("public", "public_key.pem", "public key output path")
	passphrase := flag.String("passphrase", "", "encrypt the private key with this passphrase")
	flag.Parse()

	pair, err := encryption.GenerateKeyPair(*bits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key pair: %v\n", err)
		os.Exit(1)
	}

	var pass []byte
	if *passphrase != "" {
		pass = []byte(*passphrase)
	}

	privPEM, err := encryption.EncodePrivateKeyPEM(pair.PrivateKey, pass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding private key: %v\n", err)
		os.Exit(1)
	}
	pubPEM, err := encryption.EncodePublicKeyPEM(pair.PublicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding public key: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*privPath, privPEM, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing private key: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*pubPath, pubPEM, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing public key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d-bit RSA key pair:\n", *bits)
	fmt.Printf("  private key: %s\n", *privPath)
	fmt.Printf("  public key:  %s\n", *pubPath)
	if pass != nil {
		fmt.Println("  private key is passphrase protected")
	}
}
