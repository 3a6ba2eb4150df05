package explain

import (
	"fmt"
	"time"
)

// AmbiguousTargetError reports a classification explain call that set neither
// or both of Labels and TopLabels. The caller must retry with corrected
// arguments.
type AmbiguousTargetError struct {
	Labels    int
	TopLabels int
}

func (e *AmbiguousTargetError) Error() string {
	if e.Labels > 0 && e.TopLabels > 0 {
		return "classification explain call set both labels and top_labels; set exactly one"
	}
	return "classification explain call needs exactly one of labels or top_labels"
}

// PredictionTimeoutError reports that a model adapter call exceeded its
// budget. It is isolated to one instance; other instances proceed.
type PredictionTimeoutError struct {
	InstanceID string
	Budget     time.Duration
}

func (e *PredictionTimeoutError) Error() string {
	return fmt.Sprintf("prediction for instance %s exceeded budget %v", e.InstanceID, e.Budget)
}
