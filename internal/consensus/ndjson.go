package consensus

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/preston-fay/claude-code-orchestrator-sub000/internal/atomicfile"
)

func appendDecision(path string, d Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return atomicfile.AppendRecord(path, data)
}

func readDecisions(path string) ([]Decision, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Decision
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d Decision
		if err := json.Unmarshal(line, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
