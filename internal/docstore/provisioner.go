// Package docstore provisions folders and uploads files in the remote document store.
package docstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/cruise-docsync/internal/remote"
)

// Folders is the find-or-create surface consumed by sync and bulk migration.
type Folders interface {
	// FindOrCreate returns the id of the folder named name under parentID,
	// creating it when absent.
	FindOrCreate(ctx context.Context, name, parentID string) (string, error)
	// EnsurePath walks names from rootID, creating missing segments, and returns the leaf id.
	EnsurePath(ctx context.Context, rootID string, names ...string) (string, error)
	// Forget drops any cached id for (name, parentID).
	Forget(name, parentID string)
}

// Provisioner implements Folders. Lookups always precede creates; when a query
// matches several folders the first one returned by the backend is used.
type Provisioner struct {
	drive  remote.Drive
	rootID string // used for "" and "root" parents
	log    *zap.Logger
	group  singleflight.Group
	cache  *cache.Cache
}

// NewProvisioner builds a Provisioner. sharedDriveID replaces the owner's root
// when set. cacheTTL <= 0 disables the folder id cache.
func NewProvisioner(d remote.Drive, sharedDriveID string, cacheTTL time.Duration, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	root := remote.RootSentinel
	if sharedDriveID != "" {
		root = sharedDriveID
	}
	p := &Provisioner{drive: d, rootID: root, log: log}
	if cacheTTL > 0 {
		p.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return p
}

// FindOrCreate returns the folder id for (name, parentID).
func (p *Provisioner) FindOrCreate(ctx context.Context, name, parentID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("folder name is empty")
	}
	parent := p.parent(parentID)
	key := parent + "/" + name

	if p.cache != nil {
		if id, ok := p.cache.Get(key); ok {
			return id.(string), nil
		}
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.findOrCreate(ctx, name, parent)
	})
	if err != nil {
		return "", err
	}
	id := v.(string)
	if p.cache != nil {
		p.cache.SetDefault(key, id)
	}
	return id, nil
}

func (p *Provisioner) findOrCreate(ctx context.Context, name, parent string) (string, error) {
	found, err := p.drive.ListFolders(ctx, name, parent)
	if err != nil {
		return "", err
	}
	if len(found) > 0 {
		if len(found) > 1 {
			p.log.Warn("duplicate folders, using first",
				zap.String("name", name), zap.String("parent", parent), zap.Int("count", len(found)))
		}
		return found[0].ID, nil
	}

	f, err := p.drive.CreateFolder(ctx, name, parent)
	if err != nil {
		return "", err
	}
	p.log.Info("folder created", zap.String("name", name), zap.String("parent", parent), zap.String("id", f.ID))
	return f.ID, nil
}

// EnsurePath provisions each segment under the previous one.
func (p *Provisioner) EnsurePath(ctx context.Context, rootID string, names ...string) (string, error) {
	id := p.parent(rootID)
	for _, n := range names {
		next, err := p.FindOrCreate(ctx, n, id)
		if err != nil {
			return "", err
		}
		id = next
	}
	return id, nil
}

// Forget drops a cached id, e.g. after the folder was found missing.
func (p *Provisioner) Forget(name, parentID string) {
	if p.cache != nil {
		p.cache.Delete(p.parent(parentID) + "/" + strings.TrimSpace(name))
	}
}

func (p *Provisioner) parent(id string) string {
	if id == "" || id == remote.RootSentinel {
		return p.rootID
	}
	return id
}
