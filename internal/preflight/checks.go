package preflight

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"openbq/internal/config"
	"openbq/internal/deps"
	"openbq/internal/workunit"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if detail, ok := statDir(path); !ok {
		return Result{Name: name, Detail: detail}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckReadable verifies that the directory exists and can be listed.
func CheckReadable(name, path string) Result {
	if detail, ok := statDir(path); !ok {
		return Result{Name: name, Detail: detail}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

func statDir(path string) (string, bool) {
	if strings.TrimSpace(path) == "" {
		return "not configured", false
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("%s (error: does not exist)", path), false
		}
		return fmt.Sprintf("%s (error: stat: %v)", path, err), false
	}
	if !info.IsDir() {
		return fmt.Sprintf("%s (error: is not a directory)", path), false
	}
	return "", true
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes
// available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(st.Bavail) * uint64(st.Bsize)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, need %s", humanize.IBytes(free), humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}

// CheckEngine verifies that the command configured for the selected engine
// resolves on PATH.
func CheckEngine(cfg *config.Config, opts config.JobOptions) Result {
	engine, err := workunit.ParseEngine(string(opts.Engine))
	if err != nil {
		return Result{Name: "Engine", Detail: err.Error()}
	}
	name := fmt.Sprintf("Engine %s", strings.ToUpper(string(engine)))
	for _, status := range deps.CheckBinaries(deps.EngineRequirements(cfg, engine)) {
		if status.Optional {
			continue
		}
		if !status.Available {
			return Result{Name: name, Detail: status.Detail}
		}
		return Result{Name: name, Passed: true, Detail: status.Command}
	}
	return Result{Name: name, Detail: "engine not configured"}
}

// SystemInfo describes the host a benchmark ran on.
type SystemInfo struct {
	CPUs     int    `json:"CPU count"`
	Memory   string `json:"Memory"`
	Platform string `json:"Platform"`
	Kernel   string `json:"Kernel,omitempty"`
}

// DescribeSystem collects host details for benchmark output. Fields that
// cannot be read are left empty.
func DescribeSystem() SystemInfo {
	info := SystemInfo{
		CPUs:     runtime.NumCPU(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		unit := uint64(si.Unit)
		if unit == 0 {
			unit = 1
		}
		info.Memory = humanize.IBytes(uint64(si.Totalram) * unit)
	}
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		info.Kernel = unix.ByteSliceToString(uts.Release[:])
	}
	return info
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
