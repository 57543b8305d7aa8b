// Copyright 2026 Talksy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/emadnahed/talksy/pkg/registry"
)

// Registry holds the live set of tools. Registration and removal are safe
// at runtime; executions in flight keep the tool instance they resolved.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{
		base: registry.NewBaseRegistry[Tool](),
	}
}

// Register adds a tool under its definition name. Registering an existing
// name fails; use Replace for hot swaps.
func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool registration requires a name")
	}
	if err := r.base.Register(def.Name, t); err != nil {
		return err
	}
	slog.Debug("Tool registered", "tool", def.Name, "category", def.Category)
	return nil
}

// Replace registers or overwrites a tool.
func (r *Registry) Replace(t Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool registration requires a name")
	}
	r.base.Set(def.Name, t)
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) bool {
	return r.base.Remove(name) == nil
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

// List returns definitions of all non-deprecated tools, sorted by name.
func (r *Registry) List() []Definition {
	return r.list(false)
}

// ListAll returns every definition, deprecated included, sorted by name.
func (r *Registry) ListAll() []Definition {
	return r.list(true)
}

func (r *Registry) list(includeDeprecated bool) []Definition {
	defs := make([]Definition, 0, r.base.Count())
	for _, t := range r.base.List() {
		def := t.Definition()
		if def.Deprecated && !includeDeprecated {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ListByCategory returns non-deprecated definitions in a category, sorted
// by name.
func (r *Registry) ListByCategory(category string) []Definition {
	var defs []Definition
	for _, t := range r.base.List() {
		def := t.Definition()
		if def.Deprecated || def.Category != category {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Categories returns the distinct non-empty categories in use, sorted.
func (r *Registry) Categories() []string {
	seen := make(map[string]struct{})
	for _, t := range r.base.List() {
		if cat := t.Definition().Category; cat != "" {
			seen[cat] = struct{}{}
		}
	}
	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return r.base.Count()
}
