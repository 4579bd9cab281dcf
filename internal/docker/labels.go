package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys set on every container autumn creates
const (
	LabelProject       = "autumn.project"
	LabelRunID         = "autumn.run_id"
	LabelWorkspacePath = "autumn.workspace.path"
	LabelComponent     = "autumn.component"
)

// BuildLabels creates the standard label set for an autumn container.
// component is omitted when empty.
func BuildLabels(runID, workspacePath, component string) map[string]string {
	labels := map[string]string{
		LabelProject:       "true",
		LabelRunID:         runID,
		LabelWorkspacePath: workspacePath,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// ContainerName returns a unique container name for one component invocation,
// e.g. autumn-build-3f2a9c1d. Docker requires names to be unique per daemon.
func ContainerName(component string) string {
	return fmt.Sprintf("autumn-%s-%s", component, uuid.NewString()[:8])
}
