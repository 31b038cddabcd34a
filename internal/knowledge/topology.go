package knowledge

import "sync"

// NetworkTopology tracks measured network distances between clients and
// cluster nodes, keyed by (clientNetworkLocation, nodeName). It has its own
// lock, separate from Knowledge's, because the Monitor appends to it far
// more often than the Analyzer reads it.
type NetworkTopology struct {
	mu        sync.RWMutex
	distances map[string]map[string]float64
}

// NewNetworkTopology returns an empty topology.
func NewNetworkTopology() *NetworkTopology {
	return &NetworkTopology{distances: map[string]map[string]float64{}}
}

// SetDistance records the measured distance between a client's network
// location and a node.
func (t *NetworkTopology) SetDistance(clientLocation, nodeName string, distance float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.distances[clientLocation]
	if m == nil {
		m = map[string]float64{}
		t.distances[clientLocation] = m
	}
	m[nodeName] = distance
}

// GetDistance returns the measured distance and whether it is known.
func (t *NetworkTopology) GetDistance(clientLocation, nodeName string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.distances[clientLocation]
	if !ok {
		return 0, false
	}
	d, ok := m[nodeName]
	return d, ok
}

// GetNetworkDistances returns the distance from clientLocation to every node
// named in nodeNames that has a known measurement, mirroring the original
// analyzer's get_network_distances query used to score placement proximity.
func (t *NetworkTopology) GetNetworkDistances(clientLocation string, nodeNames []string) map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[string]float64{}
	m, ok := t.distances[clientLocation]
	if !ok {
		return out
	}
	for _, n := range nodeNames {
		if d, ok := m[n]; ok {
			out[n] = d
		}
	}
	return out
}
