package cartsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"p8sync/internal/cart"
	"p8sync/internal/trace"
)

// Bootstrap creates "<name>.lua" for every "<name>.p8" in dir that has no
// companion yet. The companion receives the code region verbatim. Only dir
// itself is scanned. It returns the companions it created, sorted.
//
// A cartridge that cannot be split is skipped and reported in the joined
// error; the remaining cartridges are still processed.
func (s *Syncer) Bootstrap(ctx context.Context, dir string) ([]string, error) {
	ctx, span := trace.Start(ctx, trace.ScopeSync, "bootstrap")
	defer span.End(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var (
		created []string
		errs    []error
	)
	for _, e := range entries {
		if e.IsDir() || !cart.IsCart(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return created, err
		}
		cartPath := filepath.Join(dir, e.Name())
		luaPath := cart.CompanionPath(cartPath)
		ok, err := extract(cartPath, luaPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("bootstrap %s: %w", e.Name(), err))
			continue
		}
		if ok {
			trace.Point(trace.FromContext(ctx), trace.ScopeSync, "bootstrap.created", luaPath, span.ID())
			created = append(created, luaPath)
		}
	}
	sort.Strings(created)
	span.WithExtra("created", fmt.Sprint(len(created)))
	return created, errors.Join(errs...)
}

// extract writes the code region of cartPath to luaPath unless luaPath
// already exists.
func extract(cartPath, luaPath string) (bool, error) {
	if _, err := os.Stat(luaPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	// #nosec G304 -- path comes from a directory listing
	raw, err := os.ReadFile(cartPath)
	if err != nil {
		return false, err
	}
	doc, err := cart.SplitFile(cartPath, string(raw))
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(luaPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.WriteString(doc.Code); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}
