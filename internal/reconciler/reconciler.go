// Package reconciler implements the state reconciler (spec.md section
// 4.F): detects drift between Manifest, Lock, and State by cryptographic
// hashing, regenerating Lock and/or State as needed, and reports whether
// anything changed.
package reconciler

import (
	"os"
	"path/filepath"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/docstore"
	"github.com/avatar-cli/avatar/internal/lockcompiler"
	"github.com/avatar-cli/avatar/internal/lockdoc"
	"github.com/avatar-cli/avatar/internal/manifest"
	"github.com/avatar-cli/avatar/internal/statedoc"
	"github.com/sirupsen/logrus"
)

// Paths locates the three documents on disk.
type Paths struct {
	ManifestPath string
	LockPath     string
	StatePath    string
}

// Reconciler drives the state reconciler.
type Reconciler struct {
	Compiler *lockcompiler.Compiler
	Log      *logrus.Entry
}

// Result is what Reconcile returns: the resolved State plus whether any
// artifact (Lock, State) was regenerated.
type Result struct {
	Manifest manifest.Manifest
	Lock     lockdoc.Lock
	State    statedoc.State
	Changed  bool
}

// Reconcile implements spec.md 4.F's four-step algorithm.
func (r *Reconciler) Reconcile(paths Paths) (Result, error) {
	manLoaded, err := docstore.Load[manifest.Manifest](paths.ManifestPath)
	if err != nil {
		return Result{}, err
	}

	lock, lockHash, changed, err := r.reconcileLock(paths, manLoaded.Doc, manLoaded.Hash)
	if err != nil {
		return Result{}, err
	}

	state, stateChanged, err := r.reconcileState(paths, lock, lockHash)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Manifest: manLoaded.Doc,
		Lock:     lock,
		State:    state,
		Changed:  changed || stateChanged,
	}, nil
}

func (r *Reconciler) reconcileLock(paths Paths, man manifest.Manifest, manifestHash string) (lockdoc.Lock, string, bool, error) {
	exists, regular, err := docstore.IsRegular(paths.LockPath)
	if err != nil {
		return lockdoc.Lock{}, "", false, err
	}
	if exists && !regular {
		return lockdoc.Lock{}, "", false, avatarerr.New(avatarerr.CodeDataErr, "%s exists but is not a regular file", paths.LockPath)
	}

	if exists {
		lockLoaded, err := docstore.Load[lockdoc.Lock](paths.LockPath)
		if err != nil {
			return lockdoc.Lock{}, "", false, err
		}
		if lockLoaded.Doc.ProjectConfigHash == manifestHash {
			return lockLoaded.Doc, lockLoaded.Hash, false, nil
		}
	}

	r.Log.Info("manifest changed, recompiling lock")
	lock, lockHash, err := r.Compiler.CompileAndPersist(man, manifestHash, paths.LockPath)
	if err != nil {
		return lockdoc.Lock{}, "", false, err
	}
	return lock, lockHash, true, nil
}

func (r *Reconciler) reconcileState(paths Paths, lock lockdoc.Lock, lockHash string) (statedoc.State, bool, error) {
	exists, regular, err := docstore.IsRegular(paths.StatePath)
	if err != nil {
		return statedoc.State{}, false, err
	}
	if exists && !regular {
		return statedoc.State{}, false, avatarerr.New(avatarerr.CodeDataErr, "%s exists but is not a regular file", paths.StatePath)
	}

	if exists {
		stateLoaded, err := docstore.Load[statedoc.State](paths.StatePath)
		if err != nil {
			return statedoc.State{}, false, err
		}
		if stateLoaded.Doc.ProjectConfigHash == lockHash {
			return stateLoaded.Doc, false, nil
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(paths.StatePath), 0o755); err != nil {
			return statedoc.State{}, false, avatarerr.New(avatarerr.CodeCantCreat, "failed to create %s: %s", filepath.Dir(paths.StatePath), err)
		}
	}

	r.Log.Info("lock changed, regenerating state")
	state := statedoc.FromLock(lock, lockHash)
	if _, err := docstore.Save(paths.StatePath, state); err != nil {
		return statedoc.State{}, false, err
	}
	return state, true, nil
}
