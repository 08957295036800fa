package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transportgrpc "github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/grpc"
)

const usage = `usage: authzctl <command> [flags]

commands:
  keygen     write a new RSA signing key into the key directory
  jwks       print the published key set
  authorize  ask whether a user may perform an action on a feature`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = keygen(os.Args[2:])
	case "jwks":
		err = jwks(os.Args[2:])
	case "authorize":
		err = authorize(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	dir := fs.String("dir", "./secrets", "key directory")
	kid := fs.String("kid", "authz-signing", "key id, used as the file name")
	bits := fs.Int("bits", 2048, "RSA key size")
	_ = fs.Parse(args)

	key, err := rsa.GenerateKey(rand.Reader, *bits)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(*dir, 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	path := filepath.Join(*dir, *kid+".pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}

	fmt.Printf("wrote %s (set AUTHZ_JWT_KEY_ID=%s to sign with it)\n", path, *kid)
	return nil
}

func dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func jwks(args []string) error {
	fs := flag.NewFlagSet("jwks", flag.ExitOnError)
	addr := fs.String("addr", "localhost:50051", "gRPC address")
	_ = fs.Parse(args)

	conn, err := dial(*addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := transportgrpc.NewClient(conn, "").JWKS(ctx)
	if err != nil {
		return err
	}
	fmt.Println(doc)
	return nil
}

func authorize(args []string) error {
	fs := flag.NewFlagSet("authorize", flag.ExitOnError)
	addr := fs.String("addr", "localhost:50051", "gRPC address")
	apiKey := fs.String("api-key", os.Getenv("AUTHZ_API_KEY"), "tenant API key")
	user := fs.String("user", "", "user id")
	feature := fs.String("feature", "", "feature key")
	action := fs.String("action", "view", "view, create, modify, delete or print")
	_ = fs.Parse(args)

	conn, err := dial(*addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	allowed, err := transportgrpc.NewClient(conn, *apiKey).Authorize(ctx, *user, *feature, *action)
	if err != nil {
		return err
	}
	fmt.Printf("allowed=%t\n", allowed)
	if !allowed {
		os.Exit(1)
	}
	return nil
}
