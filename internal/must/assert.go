package must

import (
	"log/slog"
	"os"
)

func Assert(cond bool, failMessage string) {
	if !cond {
		slog.Error(failMessage)
		os.Exit(1)
	}
}
