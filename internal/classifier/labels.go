package classifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LabelCountError reports a label list whose size differs from the model output.
type LabelCountError struct {
	Labels  int
	Outputs int
}

func (e *LabelCountError) Error() string {
	return fmt.Sprintf("label count mismatch: %d labels for %d model outputs", e.Labels, e.Outputs)
}

// ReadLabels parses one label per line. Blank lines and lines starting with '#'
// are skipped; duplicate labels are rejected because they would collapse two
// output indices into one distribution entry.
func ReadLabels(r io.Reader) ([]string, error) {
	var labels []string
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if prev, dup := seen[text]; dup {
			return nil, fmt.Errorf("duplicate label %q on lines %d and %d", text, prev, line)
		}
		seen[text] = line
		labels = append(labels, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels found")
	}
	return labels, nil
}

// LoadLabels reads a label file from disk.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	labels, err := ReadLabels(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return labels, nil
}
