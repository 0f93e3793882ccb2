package models

// MediaFile is one publishable file. PublicURL must be reachable by the
// platform's servers; FileURL is the storage key used to stream bytes.
type MediaFile struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	FileURL   string `json:"file_url"`
	PublicURL string `json:"public_url"`
	MimeType  string `json:"file_type"`
	Size      int64  `json:"file_size"`
}

type PublishRequest struct {
	Title      string      `json:"title,omitempty"`
	Caption    string      `json:"caption"`
	MediaFiles []MediaFile `json:"media_files"`
}

type PublishResult struct {
	Platform  Platform `json:"platform"`
	Success   bool     `json:"success"`
	PostID    string   `json:"postId,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"errorKind,omitempty"`
	ErrorCode string   `json:"errorCode,omitempty"`
	Err       error    `json:"-"`
}
