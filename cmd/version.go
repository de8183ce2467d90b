package cmd

import (
	"fmt"

	"github.com/dupelink/dupelink/pkg/runtime"
)

func versionString() string {
	return fmt.Sprintf("%s commit: %s built at: %s", runtime.Version, runtime.GitCommit, runtime.Timestamp)
}
