package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Version runs "<binary> -version" and returns the reported version string,
// for example "6.1.1-3ubuntu5" from "ffmpeg version 6.1.1-3ubuntu5 ...".
func Version(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	return parseVersion(string(output))
}

func parseVersion(output string) (string, error) {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(firstLine)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "version" {
			return fields[i+1], nil
		}
	}
	return "", fmt.Errorf("unrecognized version output %q", firstLine)
}
