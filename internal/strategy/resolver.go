package strategy

// HostResolver maps source database host names to reachable addresses.
// Source configurations often carry hosts that only resolve inside another
// network (a compose service name, a docker-internal alias); the resolver
// substitutes a reachable address based on deployment configuration instead
// of string literals compared inline.
type HostResolver interface {
	Resolve(host string) string
}

// MapHostResolver resolves hosts through a static override table. Hosts
// without an override pass through unchanged.
type MapHostResolver map[string]string

func (m MapHostResolver) Resolve(host string) string {
	if override, ok := m[host]; ok {
		return override
	}
	return host
}
