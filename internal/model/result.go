package model

import "time"

// PageStatus classifies the outcome of mirroring a single page.
type PageStatus string

const (
	// StatusMirrored means the page was fetched, converted, and exported.
	StatusMirrored PageStatus = "mirrored"
	// StatusUnchanged means the page fingerprint matched the previous run
	// and export was skipped.
	StatusUnchanged PageStatus = "unchanged"
	// StatusFailed means the page could not be mirrored after all retries.
	StatusFailed PageStatus = "failed"
)

// String returns the status as a lowercase word.
func (s PageStatus) String() string {
	return string(s)
}

// PageResult is the outcome of mirroring one page. Failures are recorded
// here rather than silently dropped so that the final report can account for
// every discovered node.
type PageResult struct {
	// Node is the tree node the result belongs to.
	Node TreeNode `json:"node"`
	// Status classifies the outcome.
	Status PageStatus `json:"status"`
	// DocumentPath is the exported document path relative to the mirror
	// root. Empty unless Status is StatusMirrored.
	DocumentPath string `json:"document_path,omitempty"`
	// AttachmentsExtracted counts attachments whose text was exported.
	AttachmentsExtracted int `json:"attachments_extracted,omitempty"`
	// AttachmentsDropped counts attachments rejected by filtering or failed
	// during download and extraction.
	AttachmentsDropped int `json:"attachments_dropped,omitempty"`
	// OptimizerFallback reports that content optimization failed and the
	// plain conversion was exported instead.
	OptimizerFallback bool `json:"optimizer_fallback,omitempty"`
	// Attempts is the number of fetch attempts the page consumed.
	Attempts int `json:"attempts,omitempty"`
	// Fingerprint is the hex content fingerprint recorded for change
	// detection.
	Fingerprint string `json:"fingerprint,omitempty"`
	// Error describes why the page failed. Empty unless Status is
	// StatusFailed.
	Error string `json:"error,omitempty"`
}

// Run statuses recorded in the ledger and reported to the callback.
const (
	// RunRunning marks a run that has started and not yet finished.
	RunRunning = "running"
	// RunCompleted marks a run that finished, possibly with failed pages.
	RunCompleted = "completed"
	// RunFailed marks a run aborted before mirroring could start.
	RunFailed = "failed"
	// RunCanceled marks a run interrupted by signal or context.
	RunCanceled = "canceled"
)

// MirrorResult is the aggregate outcome of a mirror run.
type MirrorResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`
	// Status is the final run status: completed, failed, or canceled.
	Status string `json:"status"`
	// StartURL is the page URL the run was pointed at.
	StartURL string `json:"start_url"`
	// RootPageID is the page identifier resolved from StartURL.
	RootPageID string `json:"root_page_id,omitempty"`
	// OutputDir is the absolute mirror root directory.
	OutputDir string `json:"output_dir"`
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Pages holds one result per discovered node.
	Pages []PageResult `json:"pages"`
}

// NewMirrorResult returns a MirrorResult stamped with the current time.
func NewMirrorResult(runID, startURL, outputDir string) *MirrorResult {
	return &MirrorResult{
		RunID:     runID,
		Status:    RunRunning,
		StartURL:  startURL,
		OutputDir: outputDir,
		StartedAt: time.Now(),
	}
}

// Finish stamps the completion time and final status.
func (r *MirrorResult) Finish(status string) {
	r.Status = status
	r.FinishedAt = time.Now()
}

// Duration returns the wall-clock duration of the run.
func (r *MirrorResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountByStatus returns how many pages finished with the given status.
func (r *MirrorResult) CountByStatus(status PageStatus) int {
	n := 0
	for _, p := range r.Pages {
		if p.Status == status {
			n++
		}
	}
	return n
}

// AttachmentsExtracted returns the total extracted attachment count.
func (r *MirrorResult) AttachmentsExtracted() int {
	n := 0
	for _, p := range r.Pages {
		n += p.AttachmentsExtracted
	}
	return n
}

// AttachmentsDropped returns the total dropped attachment count.
func (r *MirrorResult) AttachmentsDropped() int {
	n := 0
	for _, p := range r.Pages {
		n += p.AttachmentsDropped
	}
	return n
}
