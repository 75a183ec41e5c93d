package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ChangedFile is one file in a diff. ChangedLines are lines of the new
// version that were added or modified, plus the line a deletion follows.
type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// ChangedFiles runs git diff against baseRef inside dir and returns the
// changed files, joined onto dir, with their added or modified lines.
func ChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "diff", "--relative", "-U0", baseRef, "--")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	changes, err := parseDiff(output)
	if err != nil {
		return nil, err
	}
	for i := range changes {
		changes[i].Path = filepath.Join(dir, filepath.FromSlash(changes[i].Path))
	}
	return changes, nil
}

// @@ -oldStart,oldLen +newStart,newLen @@
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				// a/path b/path; the b/ side is the new version.
				path := strings.TrimPrefix(parts[3], "b/")
				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				currentFile = &ChangedFile{Path: path, ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil || !strings.HasPrefix(line, "@@") {
			continue
		}
		matches := chunkHeader.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}
		start, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("malformed hunk header %q: %w", line, err)
		}
		count := 1
		if matches[2] != "" {
			count, _ = strconv.Atoi(matches[2])
		}
		if count == 0 {
			// pure deletion after line start; the enclosing class is there
			currentFile.ChangedLines = append(currentFile.ChangedLines, max(start, 1))
			continue
		}
		for i := 0; i < count; i++ {
			currentFile.ChangedLines = append(currentFile.ChangedLines, start+i)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diff: %w", err)
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}
	return changes, nil
}
