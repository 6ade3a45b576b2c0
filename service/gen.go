package service

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/gofrs/uuid"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// genID returns a new session id.
func genID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Sprintf("%x", rand.Int63())
	}
	return id.String()
}
