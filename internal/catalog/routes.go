package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Route maps a URL route to the component serving it
type Route struct {
	Path string `yaml:"path"`
	// Component is a component id or a doublestar glob over ids
	Component string `yaml:"component"`
	// Live defaults to true
	Live *bool `yaml:"live,omitempty"`
}

// RouteUsage is a route still bound to a component
type RouteUsage struct {
	Route string `json:"route"`
	Live  bool   `json:"live"`
}

type routingFile struct {
	Routes []Route `yaml:"routes"`
}

// RoutingTable answers which routes use a component
type RoutingTable struct {
	routes []Route
}

// LoadRoutes parses the routing table at path. An empty path yields an
// empty table.
func LoadRoutes(path string) (*RoutingTable, error) {
	if path == "" {
		return &RoutingTable{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing table: %w", err)
	}
	return ParseRoutes(data)
}

// ParseRoutes decodes routing table YAML
func ParseRoutes(data []byte) (*RoutingTable, error) {
	var file routingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse routing table: %w", err)
	}
	for i, r := range file.Routes {
		if r.Path == "" || r.Component == "" {
			return nil, fmt.Errorf("route %d: path and component are required", i)
		}
		if !doublestar.ValidatePattern(r.Component) {
			return nil, fmt.Errorf("route %q: invalid component pattern %q", r.Path, r.Component)
		}
	}
	return &RoutingTable{routes: file.Routes}, nil
}

// Len returns the number of routes
func (t *RoutingTable) Len() int { return len(t.routes) }

// UsageFor returns the routes bound to componentID, sorted by route.
func (t *RoutingTable) UsageFor(componentID string) []RouteUsage {
	var out []RouteUsage
	for _, r := range t.routes {
		if r.Component != componentID {
			if ok, _ := doublestar.Match(r.Component, componentID); !ok {
				continue
			}
		}
		live := true
		if r.Live != nil {
			live = *r.Live
		}
		out = append(out, RouteUsage{Route: r.Path, Live: live})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}
