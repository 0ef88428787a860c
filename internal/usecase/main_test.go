package usecase

import (
	"os"
	"testing"

	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize("error"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
