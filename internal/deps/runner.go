package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// CheckRunner reports the model runner binary the daemon will execute.
//
// The runner is configured as an argv list; only the first element names a
// binary. Resolution happens up front so a misconfigured entry shows up in
// doctor output instead of failing the first enrollment chunk.
func CheckRunner(command []string) Status {
	result := Status{
		Name:        "Model runner",
		Description: "Computes voice, face, and lip sync embeddings",
	}

	binary := ""
	if len(command) > 0 {
		binary = strings.TrimSpace(command[0])
	}
	if binary == "" {
		result.Detail = "models.runner_command is not configured"
		return result
	}
	result.Command = binary

	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	if info, statErr := os.Stat(resolved); statErr != nil || !isExecutable(info) {
		result.Detail = fmt.Sprintf("binary %q is not executable", resolved)
		return result
	}

	result.Command = resolved
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
