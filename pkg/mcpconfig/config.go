// Package mcpconfig loads server definitions from layered configuration files.
//
// Files use the common "mcpServers" layout:
//
//	{
//	  "mcpServers": {
//	    "filesystem": {"command": "npx", "args": ["-y", "@modelcontextprotocol/server-filesystem", "."]},
//	    "search": {"url": "https://example.com/mcp", "timeout": 10000}
//	  }
//	}
//
// Later files override earlier ones field by field, so a project file can
// disable a globally configured server with {"enabled": false} alone. YAML
// files are accepted as well.
package mcpconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

// Entry is the merged configuration of one server.
type Entry struct {
	Name   string
	Config mcpmgr.ServerConfig
	// Sources lists the files that contributed to Config, in load order.
	Sources []string
}

// DefaultPaths returns the standard configuration files in load order: the
// user's global file, then the project's directory file, then the project
// root file.
func DefaultPaths(home, cwd string) []string {
	var paths []string
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "mcpsup", "mcp.json"))
	}
	if cwd != "" {
		paths = append(paths,
			filepath.Join(cwd, ".mcpsup", "mcp.json"),
			filepath.Join(cwd, ".mcp.json"),
		)
	}
	return paths
}

// Load reads paths in order and merges their servers. Missing files are
// skipped. Files that cannot be parsed are logged and skipped as a whole.
// Entries are returned in order of first appearance. The error is non-nil
// only when an existing file cannot be read.
func Load(paths []string, logger *zap.Logger) ([]Entry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var entries []Entry
	index := make(map[string]int)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("config file not found", zap.String("path", path))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("mcpconfig: read %s: %w", path, err)
		}
		servers, err := parse(data)
		if err != nil {
			logger.Warn("skipping unparsable config file", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, s := range servers {
			i, ok := index[s.name]
			if !ok {
				i = len(entries)
				index[s.name] = i
				entries = append(entries, Entry{Name: s.name})
			}
			s.applyTo(&entries[i].Config)
			entries[i].Sources = append(entries[i].Sources, path)
		}
		logger.Debug("config file loaded", zap.String("path", path), zap.Int("servers", len(servers)))
	}
	return entries, nil
}

// Registrar accepts server registrations. *mcpmgr.Manager satisfies it.
type Registrar interface {
	AddServer(name string, cfg mcpmgr.ServerConfig)
}

// Register adds every entry to r in order.
func Register(r Registrar, entries []Entry) {
	for _, e := range entries {
		r.AddServer(e.Name, e.Config)
	}
}

// partial is one server block of one file together with the keys it set.
type partial struct {
	name   string
	config mcpmgr.ServerConfig
	keys   []string
}

func parse(data []byte) ([]partial, error) {
	// The YAML scanner rejects tab indentation, which is common in JSON.
	if json.Valid(data) {
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err == nil {
			data = compact.Bytes()
		}
	}
	var doc struct {
		MCPServers yaml.Node `yaml:"mcpServers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := doc.MCPServers
	switch root.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
	default:
		if root.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("line %d: mcpServers must be a mapping", root.Line)
	}

	servers := make([]partial, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: server %q must be a mapping", value.Line, key.Value)
		}
		p := partial{name: key.Value}
		if err := value.Decode(&p.config); err != nil {
			return nil, fmt.Errorf("server %q: %w", key.Value, err)
		}
		for j := 0; j+1 < len(value.Content); j += 2 {
			p.keys = append(p.keys, value.Content[j].Value)
		}
		servers = append(servers, p)
	}
	return servers, nil
}

// applyTo overwrites the fields of dst that this block set.
func (p partial) applyTo(dst *mcpmgr.ServerConfig) {
	src := p.config
	for _, key := range p.keys {
		switch key {
		case "command":
			dst.Command = src.Command
		case "args":
			dst.Args = src.Args
		case "env":
			dst.Env = src.Env
		case "cwd":
			dst.Cwd = src.Cwd
		case "url":
			dst.URL = src.URL
		case "headers":
			dst.Headers = src.Headers
		case "enabled":
			dst.Enabled = src.Enabled
		case "timeout":
			dst.TimeoutMS = src.TimeoutMS
		case "logJsonRpc":
			dst.LogJSONRPC = src.LogJSONRPC
		}
	}
}
