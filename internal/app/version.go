package app

// Service metadata
const ServiceName = "mmps-directory"

// Build-time injection variables
// These are set via -ldflags during build:
//
//	go build -ldflags="-X 'github.com/hamzaconcepts-eng/MMPS/internal/app.Version=1.0.0'"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
