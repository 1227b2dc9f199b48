package must

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// PrintJSON writes a as indented json to w. Failures are logged.
func PrintJSON(w io.Writer, a any) {
	jsn, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		slog.Error("failed to print json", "err", err)
		return
	}

	fmt.Fprintln(w, string(jsn))
}
