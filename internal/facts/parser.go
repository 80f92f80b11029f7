// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package facts

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"grimm.is/netsim/internal/errors"
)

const factsFileSuffix = "_facts.txt"

// ParseRouter parses one router's raw facts stream into a Router. name
// is the router's name (the facts file's stem).
func ParseRouter(name string, r io.Reader) (*Router, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "read facts stream")
	}

	sections := extractSections(string(raw))
	router := &Router{Name: name}

	if body, ok := find(sections, "interfaces"); ok {
		router.Interfaces = parseInterfacesSection(body)
	}
	if body, ok := find(sections, "policy_rules"); ok {
		router.Rules = parseRulesSection(body)
	}
	for _, s := range sections {
		if s.name == "routing_table" || strings.HasPrefix(s.name, "routing_table_") {
			router.RawRoutes = append(router.RawRoutes, parseRoutingSection(s.name, s.body)...)
		}
	}
	if body, ok := find(sections, "iptables_save"); ok {
		router.IPTablesSave = []byte(body)
	}
	if body, ok := find(sections, "ipset_save"); ok {
		router.IPSetSave = []byte(body)
	}

	return router, nil
}

// ParseDirectory loads every "<router>_facts.txt" file in dir into a
// Model. A router whose file cannot be opened is skipped with a
// LoadWarning; an I/O failure listing the directory itself is fatal
// (spec §4.1 error handling).
func ParseDirectory(dir string) (*Model, []LoadWarning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		kind := errors.KindInternal
		if errors.Is(err, os.ErrNotExist) {
			kind = errors.KindNotFound
		} else if errors.Is(err, os.ErrPermission) {
			kind = errors.KindPermission
		}
		return nil, nil, errors.Wrapf(err, kind, "read facts directory %s", dir)
	}

	model := NewModel()
	var warnings []LoadWarning

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), factsFileSuffix) {
			continue
		}
		routerName := strings.TrimSuffix(entry.Name(), factsFileSuffix)
		path := filepath.Join(dir, entry.Name())

		f, err := os.Open(path)
		if err != nil {
			warnings = append(warnings, LoadWarning{Router: routerName, Path: path, Err: err})
			continue
		}
		router, err := ParseRouter(routerName, f)
		f.Close()
		if err != nil {
			warnings = append(warnings, LoadWarning{Router: routerName, Path: path, Err: err})
			continue
		}
		model.add(router)
	}

	return model, warnings, nil
}

// FilterByLimit removes routers whose name does not contain substr,
// implementing the CLI's --limit flag (spec §6).
func (m *Model) FilterByLimit(substr string) {
	if substr == "" {
		return
	}
	var kept []string
	for _, name := range m.Order {
		if strings.Contains(name, substr) {
			kept = append(kept, name)
		} else {
			delete(m.Routers, name)
		}
	}
	m.Order = kept
}
