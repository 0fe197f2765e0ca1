package domain

// WorkItem is one file's reprojection request plus the configuration it was
// created under. It is immutable after creation and consumed exactly once by
// a pool worker.
type WorkItem struct {
	SourcePath string
	TargetDir  string
	Options    map[string]any // projection option name -> scalar or list value
	Overviews  []int          // overview pyramid levels, may be empty
	Metadata   map[string]any // copy of the inbound message payload
}

// Output describes a successfully reprojected file.
type Output struct {
	Path string // location of the reprojected file
	UID  string // derived identifier, the output basename
}

// WorkResult is the outcome of processing a WorkItem. Output is nil when
// reprojection or overview generation failed; such items are never announced.
type WorkResult struct {
	Metadata map[string]any
	Output   *Output
}
