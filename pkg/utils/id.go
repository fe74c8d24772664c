package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateCallID generates a unique call ID
func GenerateCallID() string {
	return fmt.Sprintf("call_%s", uuid.NewString())
}

// GenerateConnID generates a unique connection handle ID
func GenerateConnID() string {
	return fmt.Sprintf("conn_%s", uuid.NewString())
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return fmt.Sprintf("req_%s", uuid.NewString())
}
