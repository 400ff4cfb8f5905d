package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"ribosim/internal/catalog"
	"ribosim/internal/history"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBind verifies the bridge address can be listened on. A running
// daemon holds the port, so this check is expected to fail while one is up.
func CheckBind(ctx context.Context, bind string) Result {
	const name = "Bridge address"
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return Result{Name: name, Detail: "missing paths.api_bind"}
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", bind)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: already in use; is a daemon running?)", bind)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	_ = listener.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bind)}
}

// CheckCatalog loads the protein catalog and confirms the default protein
// resolves.
func CheckCatalog(path, defaultProtein string) Result {
	const name = "Protein catalog"
	cat, err := catalog.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("load failed (%v)", err)}
	}
	if strings.TrimSpace(defaultProtein) != "" {
		if _, err := cat.Lookup(defaultProtein); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("default protein %q not in catalog", defaultProtein)}
		}
	}
	source := "built-in"
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err == nil {
			source = path
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d proteins (%s)", cat.Len(), source)}
}

// CheckHistory opens the session journal, which also verifies its schema.
func CheckHistory(ctx context.Context, path string) Result {
	const name = "Session history"
	store, err := history.OpenPath(path)
	if err != nil {
		if errors.Is(err, history.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema mismatch; remove the file to start a new journal)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()
	sessions, err := store.Recent(ctx, 1)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: query: %v)", path, err)}
	}
	detail := "empty"
	if len(sessions) > 0 {
		detail = "last session " + sessions[0].UpdatedAt.Local().Format("2006-01-02 15:04")
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, detail)}
}
