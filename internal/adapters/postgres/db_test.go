package postgres

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewDB_RejectsBadURL(t *testing.T) {
	nopLogger := zerolog.Nop()
	_, err := NewDB(context.Background(), "://bad", &nopLogger)
	if err == nil {
		t.Fatal("Expected an error for a malformed connection string")
	}
}
