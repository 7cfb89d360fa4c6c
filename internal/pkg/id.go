package pkg

import "github.com/google/uuid"

// GenerateGameID - generates a unique identifier for a game.
func GenerateGameID() string {
	return uuid.NewString()
}

// GenerateConnectionID - generates a unique identifier for a transport connection.
func GenerateConnectionID() string {
	return uuid.NewString()[:8]
}
