package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// ExecutableName appends the platform executable suffix to name.
func ExecutableName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// FindExecutable returns the path of name inside dir, or "" when it is
// missing or not a regular file.
func FindExecutable(dir, name string) string {
	path := filepath.Join(dir, ExecutableName(name))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		return ""
	}
	return path
}

// GetFullCmdStr renders a command line for logging.
func GetFullCmdStr(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{name}, args...) {
		if strings.ContainsAny(a, " \t\"") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// ExecCmd runs name with args in dir and returns the combined output.
func ExecCmd(ctx context.Context, dir, name string, args ...string) (string, error) {
	log := logger.Logger()
	fullCmdStr := GetFullCmdStr(name, args...)
	log.Debugf("Exec: [%s]", fullCmdStr)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof("%s", outputStr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outputStr, ctxErr
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", fullCmdStr, err)
	}
	if outputStr != "" {
		log.Debugf("%s", outputStr)
	}
	return outputStr, nil
}

// ExecCmdWithStream runs name with args in dir, logging each output line as
// it arrives. Only stdout is returned.
func ExecCmdWithStream(ctx context.Context, dir, name string, args ...string) (string, error) {
	log := logger.Logger()
	fullCmdStr := GetFullCmdStr(name, args...)
	log.Debugf("Exec: [%s]", fullCmdStr)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", fullCmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", fullCmdStr, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", fullCmdStr, err)
	}

	var (
		wg  sync.WaitGroup
		out strings.Builder
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, func(line string) {
			out.WriteString(line)
			out.WriteByte('\n')
			log.Infof("%s", line)
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) { log.Infof("%s", line) })
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out.String(), ctxErr
		}
		return out.String(), fmt.Errorf("failed to wait for command %s: %w", fullCmdStr, err)
	}
	return out.String(), nil
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			fn(line)
		}
	}
}
