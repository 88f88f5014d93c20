package domain

// DateTimeFormat is the wire representation for all window timestamps.
const DateTimeFormat = "2006-01-02T15:04:05Z"

// JobNameDateTimeFormat is the compact timestamp embedded in generated job names.
const JobNameDateTimeFormat = "20060102T150405"

// JobParameters holds the command-line-flag-shaped parameter strings the
// downstream query job expects. The receiving service consumes these as an
// ordered mapping; field declaration order here fixes the JSON key order.
// Empty string means "flag not set" and is preserved on the wire.
type JobParameters struct {
	StartDateTime         string `json:"start_datetime"`
	EndDateTime           string `json:"end_datetime"`
	Endpoint              string `json:"endpoint"`
	DownloadJobRelease    string `json:"download_job_release"`
	DownloadJobQueue      string `json:"download_job_queue"`
	ChunkSize             string `json:"chunk_size"`
	SmokeRun              string `json:"smoke_run"`
	DryRun                string `json:"dry_run"`
	NoScheduleDownload    string `json:"no_schedule_download"`
	UseTemporal           string `json:"use_temporal"`
	TemporalStartDateTime string `json:"temporal_start_datetime"`
	BoundingBox           string `json:"bounding_box"`
}

// JobRequest is the outbound submission payload. Exactly one is produced per
// invocation.
type JobRequest struct {
	Queue    string
	Priority int
	Tags     []string
	Type     string // job-<type>:<release>
	Params   JobParameters
	Name     string
}

// JobResult is the parsed job-service response.
type JobResult struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
}
