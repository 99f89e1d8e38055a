package repository

import (
	"os"
	"testing"

	"github.com/stwalsh4118/parkspot/internal/database/dbtest"
)

func TestMain(m *testing.M) {
	os.Exit(dbtest.RunMain(m))
}
