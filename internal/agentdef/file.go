package agentdef

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// agentsFile is the YAML document shape for a file-backed registry.
type agentsFile struct {
	Agents []*Definition `yaml:"agents"`
}

// LoadFile reads agent definitions from a YAML file and returns a
// registry over them. The file holds a top-level "agents" list:
//
//	agents:
//	  - name: researcher
//	    model: claude-3-5-haiku-20241022
//	    tools: [Read, Grep, Glob]
//	    system_prompt: |
//	      You research. You do not edit files.
func LoadFile(path string) (*StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agents file: %w", err)
	}

	var doc agentsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing agents file %s: %w", path, err)
	}

	reg := NewStaticRegistry()
	for _, d := range doc.Agents {
		if d == nil || d.Name == "" {
			continue
		}
		reg.Add(d)
	}
	return reg, nil
}
