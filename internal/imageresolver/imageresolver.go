// Package imageresolver implements the image resolver (spec.md section
// 4.D): for each (image_name, tag) pair, obtain the content-addressed
// digest from the runtime, pulling once on cache miss.
package imageresolver

import (
	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/runtimecli"
	"github.com/sirupsen/logrus"
)

// Resolver drives the runtime's inspect/pull cycle.
type Resolver struct {
	Runtime *runtimecli.Runtime
	Log     *logrus.Entry

	// PulledAny is set true the first time a pull is actually needed,
	// feeding the workspace installer's rebuild trigger (spec.md 4.G).
	PulledAny bool
}

// New returns a Resolver bound to rt.
func New(rt *runtimecli.Runtime, log *logrus.Entry) *Resolver {
	return &Resolver{Runtime: rt, Log: log}
}

// Resolve obtains the digest for imageName:tag, pulling at most once on a
// cache miss. A second inspect failure after pulling is fatal
// (CodeUnavailable), per spec.md 4.D's "bounded depth 1" rule.
func (r *Resolver) Resolve(imageName, tag string) (digest string, err error) {
	digest, err = r.Runtime.InspectRepoDigest(imageName, tag)
	if err == nil {
		return digest, nil
	}

	r.Log.Infof("image %s:%s not present locally, pulling", imageName, tag)
	if pullErr := r.Runtime.Pull(imageName, tag); pullErr != nil {
		return "", pullErr
	}
	r.PulledAny = true

	digest, err = r.Runtime.InspectRepoDigest(imageName, tag)
	if err != nil {
		return "", avatarerr.New(avatarerr.CodeUnavailable, "image %s:%s unavailable even after pulling", imageName, tag)
	}
	return digest, nil
}
