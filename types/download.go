package types

// DownloadResult is the outcome of fetching a single URL.
// One result is produced per non-empty input line, in input order,
// and is immutable once yielded.
type DownloadResult struct {
	// URL is the original download link as it appeared in the list file.
	URL string `json:"url" msgpack:"url"`
	// Succeeded reports whether the file was downloaded.
	Succeeded bool `json:"succeeded" msgpack:"succeeded"`
	// Message carries additional detail ("OK" on success, the error
	// message on failure).
	Message string `json:"message" msgpack:"message"`
	// LocalPath is the path of the downloaded file. Empty on failure.
	LocalPath string `json:"local_path,omitempty" msgpack:"local_path,omitempty"`
}
