package discovery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/jfrlite/jfrlite/internal/targets"
)

const (
	// SourceLocal marks JVMs found through their hsperfdata files.
	SourceLocal = "local"

	// AgentPortProperty is the JVM system property the agent listens on.
	AgentPortProperty = "-Djfrlite.agent.port="

	hsperfdataPrefix = "hsperfdata_"
)

// LocalScanner finds JVMs on this host. Each running JVM owns a file named
// after its pid under <root>/hsperfdata_<user>/. The agent port is read from
// the process command line.
type LocalScanner struct {
	Root     string
	ProcRoot string
	Logger   *slog.Logger
}

// NewLocalScanner creates a scanner over root (usually the system temp dir).
func NewLocalScanner(root string, logger *slog.Logger) *LocalScanner {
	if root == "" {
		root = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalScanner{Root: root, ProcRoot: "/proc", Logger: logger}
}

// Scan implements ScanFunc.
func (s *LocalScanner) Scan(ctx context.Context) ([]targets.Target, error) {
	dirs, err := s.perfDirs()
	if err != nil {
		return nil, err
	}

	var found []targets.Target
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			s.Logger.Debug("Skipping unreadable hsperfdata directory", "dir", dir, "error", err)
			continue
		}
		for _, entry := range entries {
			pid, err := strconv.Atoi(entry.Name())
			if err != nil || entry.IsDir() {
				continue
			}
			t, ok := s.inspect(pid)
			if !ok {
				continue
			}
			found = append(found, t)
		}
	}
	return found, nil
}

func (s *LocalScanner) perfDirs() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read hsperfdata root %s: %w", s.Root, err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), hsperfdataPrefix) {
			dirs = append(dirs, filepath.Join(s.Root, entry.Name()))
		}
	}
	return dirs, nil
}

func (s *LocalScanner) inspect(pid int) (targets.Target, bool) {
	raw, err := os.ReadFile(filepath.Join(s.ProcRoot, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		// Stale perf file left by a JVM that already exited.
		return targets.Target{}, false
	}
	args := splitCmdline(raw)

	port := 0
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, AgentPortProperty); ok {
			port, _ = strconv.Atoi(v)
		}
	}
	if port <= 0 || port > 65535 {
		s.Logger.Debug("Local JVM has no agent port", "pid", pid)
		return targets.Target{}, false
	}

	hostPort := "localhost:" + strconv.Itoa(port)
	return targets.Target{
		ID:       hostPort,
		Alias:    mainClass(args),
		AgentURL: "http://" + hostPort,
		Source:   SourceLocal,
		Labels:   map[string]string{"pid": strconv.Itoa(pid)},
	}, true
}

func splitCmdline(raw []byte) []string {
	raw = bytes.TrimRight(raw, "\x00")
	if len(raw) == 0 {
		return nil
	}
	parts := bytes.Split(raw, []byte{0})
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = string(p)
	}
	return args
}

// mainClass returns the jar name or main class from a java command line.
func mainClass(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-jar" && i+1 < len(args):
			return strings.TrimSuffix(filepath.Base(args[i+1]), ".jar")
		case arg == "-cp" || arg == "-classpath" || arg == "--class-path" || arg == "-p" || arg == "--module-path":
			i++
		case arg == "-m" || arg == "--module":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "-"):
		default:
			return arg
		}
	}
	return ""
}

// Watch triggers client whenever an hsperfdata directory gains or loses a
// file. It blocks until ctx is cancelled.
func (s *LocalScanner) Watch(ctx context.Context, client *Client) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.Root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.Root, err)
	}
	dirs, err := s.perfDirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			s.Logger.Debug("Cannot watch hsperfdata directory", "dir", dir, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			// A new hsperfdata_<user> directory needs its own watch.
			if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(s.Root) &&
				strings.HasPrefix(filepath.Base(event.Name), hsperfdataPrefix) {
				if err := watcher.Add(event.Name); err != nil {
					s.Logger.Debug("Cannot watch hsperfdata directory", "dir", event.Name, "error", err)
				}
			}
			client.Trigger()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.Logger.Warn("File watcher error", "error", err)
		}
	}
}
