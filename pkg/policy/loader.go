package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// rolesFile is the on-disk shape of a role catalogue.
type rolesFile struct {
	Roles []RoleDefinition `yaml:"roles"`
}

// LoadRolesFile parses a YAML role catalogue. Every condition operator is
// validated; an unknown operator fails the whole file rather than silently
// producing a role that can never grant.
func LoadRolesFile(path string) ([]RoleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}

	var file rolesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roles file %s: %w", path, err)
	}

	for _, role := range file.Roles {
		if role.Name == "" {
			return nil, fmt.Errorf("roles file %s: role with empty name", path)
		}
		for _, condition := range role.Conditions {
			switch condition.Operator {
			case OperatorAny, OperatorEquals, OperatorContains, OperatorMatchResource:
			default:
				return nil, fmt.Errorf("role %q operator %q: %w", role.Name, condition.Operator, ErrUnknownOperator)
			}
		}
	}

	return file.Roles, nil
}

// RegisterRolesFile loads a YAML catalogue and registers every role on the
// engine, returning the number registered.
func RegisterRolesFile(e *Engine, path string) (int, error) {
	roles, err := LoadRolesFile(path)
	if err != nil {
		return 0, err
	}
	for _, role := range roles {
		e.RegisterRole(role)
	}
	return len(roles), nil
}

// Watcher re-registers a role catalogue file whenever it changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchRolesFile starts watching path and re-registers its roles on every
// write. Registration is additive (last write wins per role name); removing a
// role from the file does not unregister it from a running engine.
func WatchRolesFile(e *Engine, path string, logger *logrus.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files atomically,
	// which drops a file-level watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	target := filepath.Clean(path)

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				count, err := RegisterRolesFile(e, path)
				if err != nil {
					logger.WithError(err).Warnf("Roles file %s changed but failed to load; keeping previous catalogue", path)
					continue
				}
				logger.Infof("Reloaded %d role(s) from %s", count, path)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Roles file watcher error")
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
