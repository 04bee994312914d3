package entities

import "errors"

// Pre-execution failures. Locator errors are fatal; ErrProfileAmbiguous is recovered.
var (
	ErrArtifactNotFound   = errors.New("artifact not found")
	ErrArtifactUnreadable = errors.New("artifact unreadable")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrProfileAmbiguous   = errors.New("profile ambiguous")
	ErrReportWriteFailed  = errors.New("report write failed")
)
