package detect

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Labels maps class IDs to names. The class ID is the zero-based line number
// in the labels file the model was trained with.
type Labels []string

// LoadLabels reads one label per line from file.
func LoadLabels(file string) (Labels, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening labels file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels Labels
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels file: %w", err)
	}

	return labels, nil
}

// Name returns the label for id, or the decimal id when it is unknown.
func (l Labels) Name(id int) string {
	if id >= 0 && id < len(l) && l[id] != "" {
		return l[id]
	}
	return fmt.Sprintf("%d", id)
}
