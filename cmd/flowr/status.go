package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

// buildVersion is overridden at link time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

// newStatusCommand reports host build/runtime info. The runtime keeps no
// persisted state between submissions (spec "Persisted state: None"), so
// there is nothing to query about past runs - this mirrors the shape of the
// teacher's GET /status handler (internal/server/server.go) without a
// server to host it on.
func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print host build and runtime information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := map[string]any{
				"version":    buildVersion,
				"go_version": runtime.Version(),
				"os":         runtime.GOOS,
				"arch":       runtime.GOARCH,
				"pid":        os.Getpid(),
				"started_at": startedAt.UTC().Format(time.RFC3339),
			}
			b, err := json.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
}
