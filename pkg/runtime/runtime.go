package runtime

// Build information, set via -ldflags "-X github.com/dupelink/dupelink/pkg/runtime.Version=..."
var (
	Version   = "0.0.0-dev"
	GitCommit = "NOVERSION"
	Timestamp = ""
)
