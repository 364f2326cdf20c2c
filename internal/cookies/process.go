package cookies

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessLister returns the names of running processes
type ProcessLister interface {
	ProcessNames(ctx context.Context) (map[string]bool, error)
}

// SystemProcesses lists processes through gopsutil
type SystemProcesses struct{}

// ProcessNames returns normalized (lower case, no .exe) process names
func (SystemProcesses) ProcessNames(ctx context.Context) (map[string]bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			// processes can exit between listing and inspection
			continue
		}
		names[normalizeProcessName(name)] = true
	}
	return names, nil
}
