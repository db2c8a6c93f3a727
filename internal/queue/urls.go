package queue

import (
	"strings"

	"github.com/sceneforge/core/internal/domain"
)

// QueueURLFor derives a capacity-kind-specific queue URL from a single base
// queue URL, suffixing the queue name with the capacity kind (e.g.
// ".../core-tasks" -> ".../core-tasks-image"). This keeps deployments to a
// single QUEUE_URL knob while still giving each CapacityKind its own queue,
// per this package's "one queue per CapacityKind" design.
func QueueURLFor(baseURL string, kind domain.CapacityKind) string {
	return baseURL + "-" + string(kind)
}

// QueueNameFor derives the bare queue name (no URL) a given capacity kind's
// queue should be created under, for use by EnsureQueue at provisioning
// time.
func QueueNameFor(baseName string, kind domain.CapacityKind) string {
	baseName = strings.TrimSuffix(baseName, "/")
	return baseName + "-" + string(kind)
}

// AllQueueURLs builds the {CapacityKind: queue URL} map the Executor needs
// to route an Enqueue call to the right queue, covering every capacity kind
// the stage graph references.
func AllQueueURLs(baseURL string) map[domain.CapacityKind]string {
	kinds := []domain.CapacityKind{
		domain.CapacityText,
		domain.CapacityImage,
		domain.CapacityTTS,
		domain.CapacityVideoSub,
		domain.CapacityVideoPol,
		domain.CapacityAssembly,
	}
	urls := make(map[domain.CapacityKind]string, len(kinds))
	for _, k := range kinds {
		urls[k] = QueueURLFor(baseURL, k)
	}
	return urls
}
