package main

import (
	"fmt"
	"log"

	"github.com/tripmate/travel-booking/internal/utils"
)

func main() {
	accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("# Add these to your .env file. Never commit them.")
	fmt.Print(utils.JWTSecretsEnv(accessSecret, refreshSecret))
}
