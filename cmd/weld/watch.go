package main

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/nooga/weld/pkg/driver"
)

// debounce groups the events of one save into one rebuild.
const debounce = 50 * time.Millisecond

// watchAndRebuild calls rebuild whenever a file under root changes, until
// ctx is done. Changes under outDir are ignored.
func watchAndRebuild(ctx context.Context, root, outDir string, rebuild func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	absOut, _ := filepath.Abs(outDir)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if abs, _ := filepath.Abs(p); abs == absOut || (d.Name() != "." && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
	if err != nil {
		return err
	}
	log := driver.Logger()
	log.Info("watching", zap.String("root", root))

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if abs, _ := filepath.Abs(ev.Name); within(abs, absOut) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New directories need a watch of their own.
				_ = w.Add(ev.Name)
			}
			log.Debug("change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer = time.After(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-timer:
			timer = nil
			rebuild()
		}
	}
}

// within reports whether p is dir or lies below it.
func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}
