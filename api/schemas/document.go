package schemas

// -- Document Schemas --

// DocumentKind distinguishes the files an application can attach.
type DocumentKind string

const (
	DocumentResume      DocumentKind = "resume"
	DocumentCoverLetter DocumentKind = "cover_letter"
)

// AssetChoice records which path ultimately satisfied an upload.
type AssetChoice string

const (
	AssetCustom   AssetChoice = "custom"
	AssetFallback AssetChoice = "fallback"
)

// DocumentAsset is a reference to a file to attach. The custom path is
// always preferred; the default fallback is a last resort, and once used it
// is recorded and the custom asset is never re-attempted for the session.
type DocumentAsset struct {
	Kind                DocumentKind `json:"kind"`
	CustomPath          string       `json:"custom_path"`
	DefaultFallbackPath string       `json:"default_fallback_path"`
	UploadAttemptCount  int          `json:"upload_attempt_count"`
	FallbackUsed        bool         `json:"fallback_used"`
}

// AttachResult reports the outcome of one attach operation.
type AttachResult struct {
	Kind     DocumentKind `json:"kind"`
	Used     AssetChoice  `json:"used"`
	Path     string       `json:"path"`
	Attempts int          `json:"attempts"`
}
