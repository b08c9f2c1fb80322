package metrics

/*
Labels and so on for metrics used in ferry.
*/

const (
	LabelMethod   = "method"
	LabelRoute    = "route"
	LabelSuccess  = "success"
	LabelPipeline = "pipeline"

	// Labels for pipeline run metrics
	LabelStage    = "stage"
	LabelStrategy = "strategy"
)
