package main

import (
	"fmt"
	"os"

	"sql-console/internal/secret"
)

func main() {
	// 32 bytes of secure random data, base64 encoded
	key, err := secret.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	session, err := secret.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== New Secrets Generated ===")
	fmt.Printf("SECRET_KEY=%s\n", key)
	fmt.Printf("SESSION_SECRET=%s\n", session)
	fmt.Println("=============================")
	fmt.Println("1. Copy these lines to your .env file.")
	fmt.Println("2. SECRET_KEY seals stored database passwords. Changing it makes them unreadable.")
	fmt.Println("3. SESSION_SECRET signs login sessions. Changing it logs every client out.")
}
