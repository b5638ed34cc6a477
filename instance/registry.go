package instance

import (
	"github.com/hatcher/sessionhub/csync"
	"github.com/hatcher/sessionhub/pkg/logs"
)

// Registry is the process-wide set of attached instances, with an
// explicit lifecycle instead of load-time singletons: construct one per
// running application, tear it down on shutdown.
type Registry struct {
	instances *csync.Map[string, *Instance]
}

func NewRegistry() *Registry {
	return &Registry{instances: csync.NewMap[string, *Instance]()}
}

func (r *Registry) Add(in *Instance) {
	r.instances.Set(in.ID, in)
}

func (r *Registry) Get(id string) (*Instance, bool) {
	return r.instances.Get(id)
}

// Remove detaches an instance without shutting it down.
func (r *Registry) Remove(id string) {
	r.instances.Del(id)
}

// Shutdown tears down one instance and removes it. Returns false for
// unknown ids.
func (r *Registry) Shutdown(id string) bool {
	in, ok := r.instances.Get(id)
	if !ok {
		return false
	}
	in.Shutdown()
	r.instances.Del(id)
	return true
}

// ShutdownAll tears down every attached instance.
func (r *Registry) ShutdownAll() {
	var ids []string
	r.instances.Range(func(id string, _ *Instance) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		logs.Infof("shutting down instance %s", id)
		r.Shutdown(id)
	}
}

func (r *Registry) Len() int {
	return r.instances.Len()
}
